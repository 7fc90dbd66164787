package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"crm-backend/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// Routing keys published by the order ledger.
const (
	RKOrderCreated       = "order.created"
	RKOrderStatusChanged = "order.status_changed"
	RKOrderPaymentAdded  = "order.payment_added"
	RKOrderDeleted       = "order.deleted"
)

type OrderEvent struct {
	OrderID       uint                 `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	CustomerID    uint                 `json:"customer_id"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Total         decimal.Decimal      `json:"total"`
	PaidAmount    decimal.Decimal      `json:"paid_amount"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

func newOrderEvent(o *models.Order, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		PaidAmount:    o.PaidAmount,
		OccurredAt:    at,
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

// RabbitPublisher publishes JSON messages to a durable topic exchange.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing.
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch.PublishWithContext(ctx, r.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (r *RabbitPublisher) Close() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}
