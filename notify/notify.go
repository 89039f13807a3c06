package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"lostandfound-exchange/dao"
	"lostandfound-exchange/metrics"
)

// ErrDelivery 通知投递失败, 调用方只记录日志
var ErrDelivery = errors.New("notification delivery failed")

// MessageStore 站内消息的持久化
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *dao.Message) error
}

// Publisher 站内消息保存后额外推送的事件通道
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Event struct {
	MessageId  uint      `json:"message_id"`
	SenderId   uint      `json:"sender_id"`
	ReceiverId uint      `json:"receiver_id"`
	Subject    string    `json:"subject"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type Sink struct {
	store     MessageStore
	publisher Publisher
}

// NewSink publisher 可以为 nil
func NewSink(store MessageStore, publisher Publisher) *Sink {
	return &Sink{store: store, publisher: publisher}
}

// Send 保存站内消息, 保存失败返回 ErrDelivery. 推送失败不影响消息本身
func (s *Sink) Send(ctx context.Context, senderId, receiverId uint, subject, body string) (*dao.Message, error) {
	msg := &dao.Message{
		Subject:    subject,
		Content:    body,
		SenderId:   senderId,
		ReceiverId: receiverId,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		metrics.NotificationFailures.Inc()
		return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if s.publisher != nil {
		err := s.publisher.Publish(ctx, Event{
			MessageId:  msg.MessageId,
			SenderId:   senderId,
			ReceiverId: receiverId,
			Subject:    subject,
			Content:    body,
			CreatedAt:  msg.CreatedAt,
		})
		if err != nil {
			metrics.NotificationFailures.Inc()
			log.WithError(err).WithField("message", msg.MessageId).Warn("推送通知事件失败")
		}
	}
	return msg, nil
}
