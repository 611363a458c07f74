// Package remote is the terminal's client of the central restaurant
// store. Implementations classify failures through apperr: validation and
// not-found are permanent, everything else is transient.
package remote

import (
	"context"

	"posd/internal/domain"
)

type Gateway interface {
	CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error)
	RecordPayment(ctx context.Context, id string, method domain.PaymentMethod) (domain.Order, error)
	CancelOrder(ctx context.Context, id, reason string) error
	UpdateOrderItems(ctx context.Context, id string, items []domain.OrderItem) (domain.Order, error)

	FetchTables(ctx context.Context) ([]domain.Table, error)
	UpdateTableStatus(ctx context.Context, id string, status domain.TableStatus, orderID *string) (domain.Table, error)
	FetchActiveReservations(ctx context.Context) ([]domain.Reservation, error)

	DeliveryFee(ctx context.Context) (float64, error)
}
