// Package domain holds the shared types of the POS core.
package domain

import "time"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// next holds the forward transition of the kitchen flow.
var next = map[OrderStatus]OrderStatus{
	StatusPending:   StatusConfirmed,
	StatusConfirmed: StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusDelivered,
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to the
// other: forward along the kitchen flow, or to cancelled any time before
// the order is delivered.
func CanTransition(from, to OrderStatus) bool {
	if to == StatusCancelled {
		return from != StatusDelivered && from != StatusCancelled
	}
	return next[from] == to
}

// IsTerminal reports whether no further status change is allowed.
func IsTerminal(s OrderStatus) bool {
	return s == StatusDelivered || s == StatusCancelled
}

type OrderType string

const (
	OrderDineIn   OrderType = "dine_in"
	OrderTakeaway OrderType = "takeaway"
	OrderDelivery OrderType = "delivery"
)

func ValidOrderType(t OrderType) bool {
	return t == OrderDineIn || t == OrderTakeaway || t == OrderDelivery
}

type OrderSource string

const (
	SourcePOS    OrderSource = "pos"
	SourceOnline OrderSource = "online"
)

type PaymentMethod string

const (
	PayCash PaymentMethod = "cash"
	PayCard PaymentMethod = "card"
)

func ValidPaymentMethod(m PaymentMethod) bool {
	return m == PayCash || m == PayCard
}

type OrderItem struct {
	ID         string  `json:"id" yaml:"id"`
	MenuItemID string  `json:"menu_item_id" yaml:"menu_item_id"`
	Name       string  `json:"name" yaml:"name"`
	Price      float64 `json:"price" yaml:"price"`
	Quantity   int     `json:"quantity" yaml:"quantity"`
}

type Order struct {
	ID            string         `json:"id"`
	Status        OrderStatus    `json:"status"`
	Type          OrderType      `json:"type"`
	Source        OrderSource    `json:"source"`
	Items         []OrderItem    `json:"items"`
	Total         float64        `json:"total"`
	TableNumber   *int           `json:"table_number,omitempty"`
	CustomerName  string         `json:"customer_name,omitempty"`
	CustomerPhone string         `json:"customer_phone,omitempty"`
	PaymentMethod *PaymentMethod `json:"payment_method,omitempty"`
	ServedAt      *time.Time     `json:"served_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ItemsTotal sums price times quantity over the order lines.
func ItemsTotal(items []OrderItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// Clone returns a deep copy so optimistic and confirmed views never alias.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.TableNumber != nil {
		n := *o.TableNumber
		c.TableNumber = &n
	}
	if o.PaymentMethod != nil {
		m := *o.PaymentMethod
		c.PaymentMethod = &m
	}
	if o.ServedAt != nil {
		ts := *o.ServedAt
		c.ServedAt = &ts
	}
	return c
}
