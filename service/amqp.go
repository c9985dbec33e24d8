package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"wallet/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BudgetAlertEvent 发布到 MQ 的预算提醒事件
type BudgetAlertEvent struct {
	Type  string      `json:"type"`
	Alert BudgetAlert `json:"alert"`
}

// alertPublisher 是 *amqp.Channel 中用到的部分
type alertPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier 将预算提醒作为事件发布到 RabbitMQ，首次发送时建立连接
type AMQPNotifier struct {
	cfg  config.AMQPConfig
	mu   sync.Mutex
	conn *amqp.Connection
	ch   alertPublisher
	dial func(cfg config.AMQPConfig) (*amqp.Connection, alertPublisher, error)
}

// NewAMQPNotifier 创建 MQ 通道
func NewAMQPNotifier(cfg config.AMQPConfig) *AMQPNotifier {
	return &AMQPNotifier{cfg: cfg, dial: dialAMQP}
}

func dialAMQP(cfg config.AMQPConfig) (*amqp.Connection, alertPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("连接 AMQP 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("打开 AMQP channel 失败: %w", err)
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("声明 exchange 失败: %w", err)
	}
	return conn, ch, nil
}

// Name 通道名
func (n *AMQPNotifier) Name() string {
	return "amqp"
}

// Notify 发布预算提醒事件，发送失败后丢弃连接以便下次重连
func (n *AMQPNotifier) Notify(ctx context.Context, alert BudgetAlert) error {
	body, err := json.Marshal(BudgetAlertEvent{Type: "budget.alert", Alert: alert})
	if err != nil {
		return fmt.Errorf("序列化预算提醒失败: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch == nil {
		conn, ch, err := n.dial(n.cfg)
		if err != nil {
			return err
		}
		n.conn, n.ch = conn, ch
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = n.ch.PublishWithContext(ctx,
		n.cfg.Exchange,   // exchange
		n.cfg.RoutingKey, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    alert.TriggeredAt,
			Body:         body,
		},
	)
	if err != nil {
		n.closeLocked()
		return fmt.Errorf("发布预算提醒失败: %w", err)
	}
	return nil
}

// Close 关闭连接
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closeLocked()
}

func (n *AMQPNotifier) closeLocked() error {
	if n.ch != nil {
		n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		err := n.conn.Close()
		n.conn = nil
		return err
	}
	return nil
}
