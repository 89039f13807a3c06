package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tx 事务内的读改写操作, 读取时加行锁
type Tx struct {
	db *gorm.DB
}

// WithTx fn 返回错误时回滚, 否则提交
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	})
}

func (t *Tx) FoundItemForUpdate(id uint) (*FoundItem, error) {
	item := new(FoundItem)
	if err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(item, id).Error; err != nil {
		return nil, translate(err)
	}
	return item, nil
}

func (t *Tx) ClaimForUpdate(id uint) (*ClaimRequest, error) {
	claim := new(ClaimRequest)
	if err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(claim, id).Error; err != nil {
		return nil, translate(err)
	}
	return claim, nil
}

// PendingClaim 没有待审核的申请时返回 nil, nil
func (t *Tx) PendingClaim(foundItemId, claimerId uint) (*ClaimRequest, error) {
	claim := new(ClaimRequest)
	err := t.db.
		Where("found_item_id = ? AND claimer_id = ? AND status = ?", foundItemId, claimerId, ClaimPending).
		Take(claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return claim, nil
}

func (t *Tx) SaveClaim(claim *ClaimRequest) error {
	return t.db.Save(claim).Error
}

func (t *Tx) SaveFoundItem(item *FoundItem) error {
	return t.db.Save(item).Error
}
