package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// AMQPPublisher 把通知事件投递到 RabbitMQ 的 direct exchange, 断线后在下次发送时重连
type AMQPPublisher struct {
	mu         sync.Mutex
	url        string
	exchange   string
	routingKey string
	conn       *amqp.Connection
	channel    *amqp.Channel
}

func NewAMQPPublisher(url, exchange, routingKey string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange, routingKey: routingKey}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	publishing := amqp.Publishing{
		MessageId:    uuid.NewString(),
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() || p.channel == nil {
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}
	err = p.channel.Publish(p.exchange, p.routingKey, false, false, publishing)
	if err != nil && isConnClosedErr(err) {
		p.closeLocked()
		if connErr := p.connectLocked(); connErr != nil {
			return fmt.Errorf("publish: %w (reconnect failed: %v)", err, connErr)
		}
		err = p.channel.Publish(p.exchange, p.routingKey, false, false, publishing)
	}
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return ctx.Err()
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *AMQPPublisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn, p.channel = conn, ch
	log.WithField("exchange", p.exchange).Info("connected to RabbitMQ")
	return nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func isConnClosedErr(err error) bool {
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "channel/connection is not open")
}
