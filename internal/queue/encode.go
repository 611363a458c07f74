package queue

import (
	"strings"
	"time"

	"posd/internal/apperr"
	"posd/internal/domain"
)

// Encoders turn a POS action into a queue entry. They validate and fail
// fast; a rejected action is never enqueued.

func newEntry(kind Kind, resource string) Entry {
	return Entry{
		ID:        domain.NewID(domain.IDPrefixEntry),
		Kind:      kind,
		Resource:  resource,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func validateItems(items []domain.OrderItem) error {
	if len(items) == 0 {
		return apperr.Validationf("at least one item is required")
	}
	for _, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return apperr.Validationf("item name is required")
		}
		if it.Quantity <= 0 {
			return apperr.Validationf("invalid quantity for item %s", it.Name)
		}
		if it.Price < 0 {
			return apperr.Validationf("invalid price for item %s", it.Name)
		}
	}
	return nil
}

func NewCreateOrder(p CreateOrderPayload) (Entry, error) {
	if p.LocalID == "" {
		return Entry{}, apperr.Validationf("local order id is required")
	}
	if !domain.ValidOrderType(p.Type) {
		return Entry{}, apperr.Validationf("invalid order type %q", p.Type)
	}
	if p.Type == domain.OrderDineIn && p.TableNumber == nil {
		return Entry{}, apperr.Validationf("dine-in order requires a table number")
	}
	if err := validateItems(p.Items); err != nil {
		return Entry{}, err
	}
	if p.Total == 0 {
		p.Total = domain.ItemsTotal(p.Items)
	}
	e := newEntry(KindCreateOrder, p.LocalID)
	e.CreateOrder = &p
	return e, nil
}

func NewUpdateStatus(orderID string, status domain.OrderStatus) (Entry, error) {
	if orderID == "" {
		return Entry{}, apperr.Validationf("order id is required")
	}
	if !domain.ValidStatus(status) {
		return Entry{}, apperr.Validationf("invalid status %q", status)
	}
	e := newEntry(KindUpdateStatus, orderID)
	e.UpdateStatus = &UpdateStatusPayload{OrderID: orderID, Status: status}
	return e, nil
}

func NewRecordPayment(orderID string, method domain.PaymentMethod) (Entry, error) {
	if orderID == "" {
		return Entry{}, apperr.Validationf("order id is required")
	}
	if !domain.ValidPaymentMethod(method) {
		return Entry{}, apperr.Validationf("invalid payment method %q", method)
	}
	e := newEntry(KindRecordPayment, orderID)
	e.RecordPayment = &RecordPaymentPayload{OrderID: orderID, Method: method}
	return e, nil
}

func NewCancelOrder(orderID, reason string) (Entry, error) {
	if orderID == "" {
		return Entry{}, apperr.Validationf("order id is required")
	}
	e := newEntry(KindCancelOrder, orderID)
	e.CancelOrder = &CancelOrderPayload{OrderID: orderID, Reason: reason}
	return e, nil
}

func NewUpdateItems(orderID string, items []domain.OrderItem) (Entry, error) {
	if orderID == "" {
		return Entry{}, apperr.Validationf("order id is required")
	}
	if err := validateItems(items); err != nil {
		return Entry{}, err
	}
	e := newEntry(KindUpdateItems, orderID)
	e.UpdateItems = &UpdateItemsPayload{OrderID: orderID, Items: items}
	return e, nil
}
