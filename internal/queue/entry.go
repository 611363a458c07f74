// Package queue is the durable local queue of POS operations awaiting
// delivery to the central store. Entries survive terminal restarts; the
// file on disk is rewritten atomically on every mutation.
package queue

import (
	"time"

	"posd/internal/domain"
)

type Kind string

const (
	KindCreateOrder   Kind = "create_order"
	KindUpdateStatus  Kind = "update_status"
	KindRecordPayment Kind = "record_payment"
	KindCancelOrder   Kind = "cancel_order"
	KindUpdateItems   Kind = "update_items"
)

// Entry is one queued operation. Resource is the terminal-local order ID;
// all entries sharing a resource form a dependency chain and are delivered
// strictly in creation order. Exactly one payload pointer is set, matching
// Kind.
type Entry struct {
	ID        string  `yaml:"id"`
	Kind      Kind    `yaml:"kind"`
	Resource  string  `yaml:"resource"`
	CreatedAt string  `yaml:"created_at"`
	Attempts  int     `yaml:"attempts"`
	LastError *string `yaml:"last_error,omitempty"`

	CreateOrder   *CreateOrderPayload   `yaml:"create_order,omitempty"`
	UpdateStatus  *UpdateStatusPayload  `yaml:"update_status,omitempty"`
	RecordPayment *RecordPaymentPayload `yaml:"record_payment,omitempty"`
	CancelOrder   *CancelOrderPayload   `yaml:"cancel_order,omitempty"`
	UpdateItems   *UpdateItemsPayload   `yaml:"update_items,omitempty"`
}

type CreateOrderPayload struct {
	LocalID       string             `yaml:"local_id"`
	Type          domain.OrderType   `yaml:"type"`
	Source        domain.OrderSource `yaml:"source"`
	TableNumber   *int               `yaml:"table_number,omitempty"`
	CustomerName  string             `yaml:"customer_name,omitempty"`
	CustomerPhone string             `yaml:"customer_phone,omitempty"`
	Items         []domain.OrderItem `yaml:"items"`
	Total         float64            `yaml:"total"`
}

type UpdateStatusPayload struct {
	OrderID string             `yaml:"order_id"`
	Status  domain.OrderStatus `yaml:"status"`
}

type RecordPaymentPayload struct {
	OrderID string               `yaml:"order_id"`
	Method  domain.PaymentMethod `yaml:"method"`
}

type CancelOrderPayload struct {
	OrderID string `yaml:"order_id"`
	Reason  string `yaml:"reason,omitempty"`
}

type UpdateItemsPayload struct {
	OrderID string             `yaml:"order_id"`
	Items   []domain.OrderItem `yaml:"items"`
}

// Created parses the entry timestamp; zero time on a corrupt value.
func (e Entry) Created() time.Time {
	t, _ := time.Parse(time.RFC3339Nano, e.CreatedAt)
	return t
}
