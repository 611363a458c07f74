package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"posd/internal/common/mq"
	"posd/internal/domain"
)

// Event names published after a confirmed operation.
const (
	EventCreated         = "created"
	EventStatusChanged   = "status_changed"
	EventPaymentRecorded = "payment_recorded"
	EventCancelled       = "cancelled"
	EventItemsUpdated    = "items_updated"
)

// EventPublisher announces confirmed operations to downstream consumers
// (kitchen display, notification subscribers).
type EventPublisher interface {
	Publish(ctx context.Context, event string, o domain.Order) error
}

type orderEvent struct {
	Event       string             `json:"event"`
	OrderID     string             `json:"order_id"`
	Status      domain.OrderStatus `json:"status"`
	OrderType   domain.OrderType   `json:"order_type"`
	TableNumber *int               `json:"table_number,omitempty"`
	Items       []domain.OrderItem `json:"items,omitempty"`
	Total       float64            `json:"total"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// AMQPPublisher publishes to the orders topic exchange with routing key
// "pos.<event>.<order_type>".
type AMQPPublisher struct {
	client *mq.Client
}

func NewAMQPPublisher(client *mq.Client) *AMQPPublisher {
	return &AMQPPublisher{client: client}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event string, o domain.Order) error {
	body, err := json.Marshal(orderEvent{
		Event:       event,
		OrderID:     o.ID,
		Status:      o.Status,
		OrderType:   o.Type,
		TableNumber: o.TableNumber,
		Items:       o.Items,
		Total:       o.Total,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	key := fmt.Sprintf("pos.%s.%s", event, o.Type)
	return p.client.PublishPersistent(ctx, mq.OrdersExchange, key, body)
}
