package claim

import (
	"errors"

	"lostandfound-exchange/dao"
)

var (
	// ErrDuplicateClaim 同一用户对同一拾物已有待审核的申请
	ErrDuplicateClaim = errors.New("a pending claim for this item already exists")
	// ErrUnauthorized 只有拾物的发布者可以审核
	ErrUnauthorized = errors.New("only the finder may review this claim")
	ErrNotFound     = dao.ErrNotFound
	// ErrInvalidTransition 申请已审核过, 或者物品已归还其他人
	ErrInvalidTransition = errors.New("claim is not pending")
	// ErrItemUnavailable 物品已归还, 不再接受认领
	ErrItemUnavailable = errors.New("item has already been returned")
	ErrInvalidAction   = errors.New("unknown review action")
	ErrEmptyProof      = errors.New("proof description is required")
)
