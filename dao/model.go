package dao

import "time"

// 物品类别 封闭集合
var Categories = []string{"electronics", "documents", "accessories", "bags", "keys", "pets", "other"}

// 失物状态
const (
	LostOpen     = "open"
	LostResolved = "resolved"
	LostClosed   = "closed"
)

// 拾物状态 claimed 只能由拾取者手动设置, 认领流程只会推进到 returned
const (
	FoundUnclaimed = "unclaimed"
	FoundClaimed   = "claimed"
	FoundReturned  = "returned"
)

// 认领申请状态
const (
	ClaimPending  = "pending"
	ClaimApproved = "approved"
	ClaimRejected = "rejected"
)

type User struct {
	UserId    uint   `gorm:"primaryKey" json:"id"`
	Username  string `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email     string `gorm:"size:120;uniqueIndex;not null" json:"email"`
	Phone     string `gorm:"size:20" json:"phone,omitempty"`
	IsAdmin   bool   `gorm:"default:false" json:"is_admin"`
	CreatedAt time.Time
}

// 丢失物品
type LostItem struct {
	ItemId      uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Category    string    `gorm:"size:50;not null;index" json:"category"`
	Location    string    `gorm:"size:200;not null" json:"location"`
	LostDate    time.Time `json:"lost_date"`
	ImgName     string    `gorm:"size:200" json:"image,omitempty"`
	ContactInfo string    `gorm:"size:200" json:"contact_info,omitempty"`
	Reward      string    `gorm:"size:100" json:"reward,omitempty"`
	Tags        string    `json:"tags,omitempty"`
	Status      string    `gorm:"size:20;not null;default:open;index" json:"status"`
	UserId      uint      `gorm:"not null;index" json:"user_id"` // 发布者, 不会改变
	CreatedAt   time.Time `json:"created_at"`
}

// 捡到物品
type FoundItem struct {
	ItemId      uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Category    string    `gorm:"size:50;not null;index" json:"category"`
	Location    string    `gorm:"size:200;not null" json:"location"`
	FoundDate   time.Time `json:"found_date"`
	ImgName     string    `gorm:"size:200" json:"image,omitempty"`
	ContactInfo string    `gorm:"size:200" json:"contact_info,omitempty"`
	Tags        string    `json:"tags,omitempty"`
	Status      string    `gorm:"size:20;not null;default:unclaimed;index" json:"status"`
	UserId      uint      `gorm:"not null;index" json:"user_id"` // 拾取者
	CreatedAt   time.Time `json:"created_at"`
}

// 认领申请 只保存外键, 不做双向关联
type ClaimRequest struct {
	ClaimId          uint       `gorm:"primaryKey" json:"id"`
	FoundItemId      uint       `gorm:"not null;index:idx_claim_item_claimer" json:"found_item_id"`
	ClaimerId        uint       `gorm:"not null;index:idx_claim_item_claimer" json:"claimer_id"`
	ProofDescription string     `gorm:"type:text;not null" json:"proof_description"`
	ProofImage       string     `gorm:"size:200" json:"proof_image,omitempty"`
	Status           string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	ReviewedAt       *time.Time `json:"reviewed_at"`
}

// 站内消息, 认领流程的通知也以消息的形式保存
type Message struct {
	MessageId  uint      `gorm:"primaryKey" json:"id"`
	Subject    string    `gorm:"size:200;not null" json:"subject"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	SenderId   uint      `gorm:"not null;index" json:"sender_id"`
	ReceiverId uint      `gorm:"not null;index" json:"receiver_id"`
	IsRead     bool      `gorm:"default:false" json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// 标签
type Tag struct {
	TagId   uint   `gorm:"primaryKey"`
	TagName string `gorm:"size:64;unique"`
}

// 标签关联
type TagItem struct {
	TagItemId uint `gorm:"primaryKey"`
	TagId     uint `gorm:"index"`
	ItemId    uint `gorm:"index"`
	Type      uint // 丢失物品和捡到物品的标签分开处理
}

// TagItem.Type
const (
	TypeLost  uint = 1
	TypeFound uint = 2
)
