package claim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"

	"lostandfound-exchange/dao"
	"lostandfound-exchange/metrics"
)

type Action string

const (
	Approve Action = "approve"
	Reject  Action = "reject"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(s)); a {
	case Approve, Reject:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Store 认领流程用到的存储操作
type Store interface {
	WithTx(ctx context.Context, fn func(tx *dao.Tx) error) error
	GetUser(ctx context.Context, id uint) (*dao.User, error)
}

// Notifier 通知发送, 失败不影响已提交的状态
type Notifier interface {
	Send(ctx context.Context, senderId, receiverId uint, subject, body string) (*dao.Message, error)
}

type Workflow struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

func NewWorkflow(store Store, notifier Notifier) *Workflow {
	return &Workflow{store: store, notifier: notifier, now: time.Now}
}

// Submit 提交认领申请并通知拾物发布者
func (w *Workflow) Submit(ctx context.Context, foundItemId, claimerId uint, proof, proofImage string) (*dao.ClaimRequest, error) {
	if strings.TrimSpace(proof) == "" {
		return nil, ErrEmptyProof
	}
	var (
		claim *dao.ClaimRequest
		item  *dao.FoundItem
	)
	err := w.store.WithTx(ctx, func(tx *dao.Tx) (err error) {
		// 锁住拾物记录, 同一物品上的检查和写入串行执行
		item, err = tx.FoundItemForUpdate(foundItemId)
		if err != nil {
			return err
		}
		if item.Status == dao.FoundReturned {
			return ErrItemUnavailable
		}
		pending, err := tx.PendingClaim(foundItemId, claimerId)
		if err != nil {
			return err
		}
		if pending != nil {
			return ErrDuplicateClaim
		}
		claim = &dao.ClaimRequest{
			FoundItemId:      foundItemId,
			ClaimerId:        claimerId,
			ProofDescription: proof,
			ProofImage:       proofImage,
			Status:           dao.ClaimPending,
			CreatedAt:        w.now(),
		}
		return tx.SaveClaim(claim)
	})
	if err != nil {
		metrics.ClaimsSubmitted.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}
	metrics.ClaimsSubmitted.WithLabelValues("ok").Inc()
	log.WithFields(log.Fields{"claim": claim.ClaimId, "item": foundItemId, "claimer": claimerId}).Info("claim submitted")

	w.notify(ctx, claimerId, item.UserId,
		fmt.Sprintf("有人申请认领您发布的物品：%s", item.Title),
		fmt.Sprintf("用户 %s 申请认领您发布的物品，请前往查看认领详情。", w.username(ctx, claimerId)))
	return claim, nil
}

// Review 拾物发布者通过或拒绝认领申请
func (w *Workflow) Review(ctx context.Context, claimId, reviewerId uint, action Action) (*dao.ClaimRequest, error) {
	if action != Approve && action != Reject {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	var (
		claim *dao.ClaimRequest
		item  *dao.FoundItem
	)
	err := w.store.WithTx(ctx, func(tx *dao.Tx) (err error) {
		claim, err = tx.ClaimForUpdate(claimId)
		if err != nil {
			return err
		}
		item, err = tx.FoundItemForUpdate(claim.FoundItemId)
		if err != nil {
			return err
		}
		if item.UserId != reviewerId {
			return ErrUnauthorized
		}
		if claim.Status != dao.ClaimPending {
			return fmt.Errorf("%w: claim %d is %s", ErrInvalidTransition, claim.ClaimId, claim.Status)
		}
		now := w.now()
		claim.ReviewedAt = &now
		if action == Reject {
			claim.Status = dao.ClaimRejected
			return tx.SaveClaim(claim)
		}
		// 每件物品最多只有一个申请被通过
		if item.Status == dao.FoundReturned {
			return fmt.Errorf("%w: item %d already returned", ErrInvalidTransition, item.ItemId)
		}
		claim.Status = dao.ClaimApproved
		item.Status = dao.FoundReturned
		if err := tx.SaveClaim(claim); err != nil {
			return err
		}
		return tx.SaveFoundItem(item)
	})
	if err != nil {
		metrics.ClaimsReviewed.WithLabelValues(string(action), resultLabel(err)).Inc()
		return nil, err
	}
	metrics.ClaimsReviewed.WithLabelValues(string(action), "ok").Inc()
	log.WithFields(log.Fields{"claim": claim.ClaimId, "reviewer": reviewerId, "status": claim.Status}).Info("claim reviewed")

	if action == Approve {
		w.notify(ctx, reviewerId, claim.ClaimerId, "您的认领申请已通过",
			fmt.Sprintf("您申请认领的物品\"%s\"已被批准，请联系发布者领取。", item.Title))
	} else {
		w.notify(ctx, reviewerId, claim.ClaimerId, "您的认领申请未通过",
			fmt.Sprintf("很抱歉，您申请认领的物品\"%s\"未通过审核。", item.Title))
	}
	return claim, nil
}

func (w *Workflow) notify(ctx context.Context, senderId, receiverId uint, subject, body string) {
	if _, err := w.notifier.Send(ctx, senderId, receiverId, subject, body); err != nil {
		log.WithError(err).WithFields(log.Fields{"sender": senderId, "receiver": receiverId}).Warn("发送通知失败")
	}
}

func (w *Workflow) username(ctx context.Context, id uint) string {
	user, err := w.store.GetUser(ctx, id)
	if err != nil {
		return fmt.Sprintf("#%d", id)
	}
	return user.Username
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateClaim):
		return "duplicate"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrItemUnavailable):
		return "invalid_state"
	}
	return "error"
}
