package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("not the owner of the record")
	ErrStatus    = errors.New("invalid status")
)

// Store 记录存储, 所有读改写都在事务内完成
type Store struct {
	db *gorm.DB
}

// Open 根据驱动名打开数据库并完成迁移
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver != "mysql" {
		// sqlite 不支持行锁, 单连接保证读改写互斥
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewStore(db)
}

func NewStore(db *gorm.DB) (*Store, error) {
	err := db.AutoMigrate(&User{}, &LostItem{}, &FoundItem{}, &ClaimRequest{}, &Message{}, &Tag{}, &TagItem{})
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, user *User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *Store) GetUser(ctx context.Context, id uint) (*User, error) {
	user := new(User)
	if err := s.db.WithContext(ctx).First(user, id).Error; err != nil {
		return nil, translate(err)
	}
	return user, nil
}

// AddLostItem 保存失物记录以及标签关系
func (s *Store) AddLostItem(ctx context.Context, item *LostItem, tags []string) error {
	item.Tags = strings.Join(tags, ",")
	if item.Status == "" {
		item.Status = LostOpen
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return addTags(tx, item.ItemId, TypeLost, tags)
	})
}

// AddFoundItem 保存拾物记录以及标签关系
func (s *Store) AddFoundItem(ctx context.Context, item *FoundItem, tags []string) error {
	item.Tags = strings.Join(tags, ",")
	if item.Status == "" {
		item.Status = FoundUnclaimed
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return addTags(tx, item.ItemId, TypeFound, tags)
	})
}

func addTags(tx *gorm.DB, itemId uint, typ uint, tags []string) error {
	for _, tagName := range tags {
		// 标签已存在则直接获取
		tag := Tag{TagName: tagName}
		if err := tx.Where(Tag{TagName: tagName}).FirstOrCreate(&tag).Error; err != nil {
			return fmt.Errorf("create tag %q: %w", tagName, err)
		}
		if err := tx.Create(&TagItem{TagId: tag.TagId, ItemId: itemId, Type: typ}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ItemTags(ctx context.Context, itemId uint, typ uint) (tags []string, err error) {
	err = s.db.WithContext(ctx).Model(&Tag{}).
		Joins("JOIN tag_items ON tag_items.tag_id = tags.tag_id").
		Where("tag_items.item_id = ? AND tag_items.type = ?", itemId, typ).
		Order("tags.tag_id").
		Pluck("tags.tag_name", &tags).Error
	return
}

// AllTags 所有已使用过的标签
func (s *Store) AllTags(ctx context.Context) (tags []string, err error) {
	err = s.db.WithContext(ctx).Model(&Tag{}).Order("tag_id").Pluck("tag_name", &tags).Error
	return
}

func (s *Store) GetLostItem(ctx context.Context, id uint) (*LostItem, error) {
	item := new(LostItem)
	if err := s.db.WithContext(ctx).First(item, id).Error; err != nil {
		return nil, translate(err)
	}
	return item, nil
}

func (s *Store) GetFoundItem(ctx context.Context, id uint) (*FoundItem, error) {
	item := new(FoundItem)
	if err := s.db.WithContext(ctx).First(item, id).Error; err != nil {
		return nil, translate(err)
	}
	return item, nil
}

func (s *Store) GetClaim(ctx context.Context, id uint) (*ClaimRequest, error) {
	claim := new(ClaimRequest)
	if err := s.db.WithContext(ctx).First(claim, id).Error; err != nil {
		return nil, translate(err)
	}
	return claim, nil
}

// OpenLostItems 用户仍在寻找中的失物
func (s *Store) OpenLostItems(ctx context.Context, userId uint) (items []LostItem, err error) {
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userId, LostOpen).
		Order("item_id").
		Find(&items).Error
	return
}

// UnclaimedFoundItems 同类别下待认领的拾物
func (s *Store) UnclaimedFoundItems(ctx context.Context, category string) (items []FoundItem, err error) {
	err = s.db.WithContext(ctx).
		Where("category = ? AND status = ?", category, FoundUnclaimed).
		Order("item_id").
		Find(&items).Error
	return
}

// UpdateLostStatus 发布者或管理员修改失物状态
func (s *Store) UpdateLostStatus(ctx context.Context, id, editorId uint, status string) (*LostItem, error) {
	switch status {
	case LostOpen, LostResolved, LostClosed:
	default:
		return nil, fmt.Errorf("%w: %q", ErrStatus, status)
	}
	item := new(LostItem)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(item, id).Error; err != nil {
			return translate(err)
		}
		if err := canEdit(tx, item.UserId, editorId); err != nil {
			return err
		}
		item.Status = status
		return tx.Model(item).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateFoundStatus 拾取者或管理员修改拾物状态
func (s *Store) UpdateFoundStatus(ctx context.Context, id, editorId uint, status string) (*FoundItem, error) {
	switch status {
	case FoundUnclaimed, FoundClaimed, FoundReturned:
	default:
		return nil, fmt.Errorf("%w: %q", ErrStatus, status)
	}
	item := new(FoundItem)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(item, id).Error; err != nil {
			return translate(err)
		}
		if err := canEdit(tx, item.UserId, editorId); err != nil {
			return err
		}
		item.Status = status
		return tx.Model(item).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func canEdit(tx *gorm.DB, ownerId, editorId uint) error {
	if ownerId == editorId {
		return nil
	}
	editor := new(User)
	err := tx.First(editor, editorId).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil && editor.IsAdmin {
		return nil
	}
	return ErrForbidden
}

// ClaimsByClaimer 我提交的认领申请
func (s *Store) ClaimsByClaimer(ctx context.Context, claimerId uint) (claims []ClaimRequest, err error) {
	err = s.db.WithContext(ctx).
		Where("claimer_id = ?", claimerId).
		Order("created_at DESC, claim_id DESC").
		Find(&claims).Error
	return
}

// ClaimsByFoundOwner 别人对我发布的拾物提交的认领申请
func (s *Store) ClaimsByFoundOwner(ctx context.Context, ownerId uint) (claims []ClaimRequest, err error) {
	err = s.db.WithContext(ctx).
		Joins("JOIN found_items ON found_items.item_id = claim_requests.found_item_id").
		Where("found_items.user_id = ?", ownerId).
		Order("claim_requests.created_at DESC, claim_requests.claim_id DESC").
		Find(&claims).Error
	return
}

func (s *Store) ClaimsByFoundItem(ctx context.Context, foundItemId uint) (claims []ClaimRequest, err error) {
	err = s.db.WithContext(ctx).
		Where("found_item_id = ?", foundItemId).
		Order("claim_id").
		Find(&claims).Error
	return
}

func (s *Store) CreateMessage(ctx context.Context, msg *Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *Store) MessagesByReceiver(ctx context.Context, receiverId uint) (msgs []Message, err error) {
	err = s.db.WithContext(ctx).
		Where("receiver_id = ?", receiverId).
		Order("created_at DESC, message_id DESC").
		Find(&msgs).Error
	return
}

// ReadMessage 收件人打开消息时标记为已读, 发件人也可以查看
func (s *Store) ReadMessage(ctx context.Context, id, userId uint) (*Message, error) {
	msg := new(Message)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(msg, id).Error; err != nil {
			return translate(err)
		}
		if msg.ReceiverId != userId && msg.SenderId != userId {
			return ErrForbidden
		}
		if msg.ReceiverId == userId && !msg.IsRead {
			msg.IsRead = true
			return tx.Model(msg).Update("is_read", true).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Store) UnreadCount(ctx context.Context, receiverId uint) (count int64, err error) {
	err = s.db.WithContext(ctx).Model(&Message{}).
		Where("receiver_id = ? AND is_read = ?", receiverId, false).
		Count(&count).Error
	return
}
