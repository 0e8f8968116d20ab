// Package events 将动作执行结果广播给下游系统。
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"OpenMCP-Arbitrum/internal/journal"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher 发布调用记录。
type Publisher interface {
	Publish(ctx context.Context, entry journal.Entry) error
	Close() error
}

// Nop 丢弃所有事件。
type Nop struct{}

func (Nop) Publish(context.Context, journal.Entry) error { return nil }
func (Nop) Close() error                                 { return nil }

// RabbitMQConfig 描述 RabbitMQ 的连接参数。
type RabbitMQConfig struct {
	URL      string
	Exchange string
	// RoutingKey 为空时使用 "action.<name>"。
	RoutingKey string
}

// RabbitMQPublisher 将调用记录以持久化 JSON 消息发布到 topic exchange。
type RabbitMQPublisher struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

// NewRabbitMQPublisher 建立连接并声明 exchange。
func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "arbitrum.actions"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明 RabbitMQ exchange 失败: %w", err)
	}
	return &RabbitMQPublisher{conn: conn, ch: ch, exchange: exchange, routingKey: cfg.RoutingKey}, nil
}

// Publish 发布一条调用记录。
func (p *RabbitMQPublisher) Publish(ctx context.Context, entry journal.Entry) error {
	if p == nil || p.ch == nil {
		return errors.New("RabbitMQ 发布器未初始化")
	}
	msg, err := NewMessage(entry)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(p.routingKey, entry), false, false, msg); err != nil {
		return fmt.Errorf("发布 RabbitMQ 消息失败: %w", err)
	}
	return nil
}

// Close 关闭 RabbitMQ 连接。
func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NewMessage 将调用记录编码为持久化消息。
func NewMessage(entry journal.Entry) (amqp.Publishing, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("序列化事件失败: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    entry.ID,
		Timestamp:    time.Unix(entry.CreatedAt, 0),
		Type:         entry.Action,
		Headers:      amqp.Table{"status": string(entry.Status)},
		Body:         body,
	}, nil
}

// RoutingKey 计算消息的路由键。
func RoutingKey(fixed string, entry journal.Entry) string {
	if fixed != "" {
		return fixed
	}
	return "action." + entry.Action
}
