// Package cart composes a customer-facing order and prices it. Carts are
// independent instances, one per browsing session; nothing here touches
// the sync queue until checkout hands the result to the POS flow.
package cart

import (
	"context"
	"strings"
	"sync"

	"posd/internal/apperr"
	"posd/internal/domain"
	"posd/internal/settings"
)

// FeePolicy holds the service fee rule: a percentage of the subtotal
// with a floor, waived entirely for table (QR code) orders.
type FeePolicy struct {
	ServiceFeeRate float64
	ServiceFeeMin  float64
}

func DefaultFeePolicy() FeePolicy {
	return FeePolicy{ServiceFeeRate: 0.10, ServiceFeeMin: 500}
}

type Totals struct {
	Subtotal    float64 `json:"subtotal"`
	ServiceFee  float64 `json:"service_fee"`
	DeliveryFee float64 `json:"delivery_fee"`
	Total       float64 `json:"total"`
}

type Cart struct {
	mu              sync.Mutex
	items           []domain.OrderItem
	orderType       domain.OrderType
	tableNumber     *int
	includeDelivery bool
	customerName    string
	customerPhone   string

	policy FeePolicy
	fees   *settings.Cache
}

// New creates an empty cart. fees may be nil when delivery is not
// offered; the delivery fee is then always zero.
func New(policy FeePolicy, fees *settings.Cache) *Cart {
	return &Cart{orderType: domain.OrderTakeaway, policy: policy, fees: fees}
}

func (c *Cart) AddItem(menuItemID, name string, price float64, quantity int) (string, error) {
	if quantity <= 0 {
		return "", apperr.Validationf("invalid quantity for item %s", name)
	}
	if price < 0 {
		return "", apperr.Validationf("invalid price for item %s", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// same menu item twice merges into one line
	for i := range c.items {
		if menuItemID != "" && c.items[i].MenuItemID == menuItemID {
			c.items[i].Quantity += quantity
			return c.items[i].ID, nil
		}
	}
	id := domain.NewID(domain.IDPrefixItem)
	c.items = append(c.items, domain.OrderItem{
		ID: id, MenuItemID: menuItemID, Name: name, Price: price, Quantity: quantity,
	})
	return id, nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (c *Cart) UpdateQuantity(itemID string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID != itemID {
			continue
		}
		if quantity <= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		} else {
			c.items[i].Quantity = quantity
		}
		return nil
	}
	return apperr.NotFoundf("cart item %s", itemID)
}

func (c *Cart) RemoveItem(itemID string) error { return c.UpdateQuantity(itemID, 0) }

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.tableNumber = nil
	c.includeDelivery = false
	c.customerName = ""
	c.customerPhone = ""
}

func (c *Cart) SetOrderType(t domain.OrderType) error {
	if !domain.ValidOrderType(t) {
		return apperr.Validationf("invalid order type %q", t)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orderType = t
	if t != domain.OrderTakeaway {
		c.includeDelivery = false
	}
	return nil
}

// SetTableNumber marks the cart as a QR table order, waiving the
// service fee.
func (c *Cart) SetTableNumber(n *int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableNumber = n
	if n != nil {
		c.orderType = domain.OrderDineIn
	}
}

func (c *Cart) SetIncludeDelivery(include bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.includeDelivery = include
}

func (c *Cart) SetCustomerInfo(name, phone string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customerName = name
	c.customerPhone = phone
}

func (c *Cart) Items() []domain.OrderItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.OrderItem(nil), c.items...)
}

func (c *Cart) Subtotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ItemsTotal(c.items)
}

// ServiceFee is zero for table orders, otherwise the rate with a floor.
func (c *Cart) ServiceFee() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serviceFeeLocked()
}

func (c *Cart) serviceFeeLocked() float64 {
	if len(c.items) == 0 || c.tableNumber != nil {
		return 0
	}
	fee := domain.ItemsTotal(c.items) * c.policy.ServiceFeeRate
	if fee < c.policy.ServiceFeeMin {
		fee = c.policy.ServiceFeeMin
	}
	return fee
}

// DeliveryFee consults the cached setting only when the order actually
// wants delivery.
func (c *Cart) DeliveryFee(ctx context.Context) (float64, error) {
	c.mu.Lock()
	wants := c.orderType == domain.OrderTakeaway && c.includeDelivery && len(c.items) > 0
	c.mu.Unlock()
	if !wants || c.fees == nil {
		return 0, nil
	}
	return c.fees.DeliveryFee(ctx)
}

// Totals prices the cart. Total is always the sum of the three parts.
func (c *Cart) Totals(ctx context.Context) (Totals, error) {
	delivery, err := c.DeliveryFee(ctx)
	if err != nil {
		return Totals{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Totals{
		Subtotal:    domain.ItemsTotal(c.items),
		ServiceFee:  c.serviceFeeLocked(),
		DeliveryFee: delivery,
	}
	t.Total = t.Subtotal + t.ServiceFee + t.DeliveryFee
	return t, nil
}

func (c *Cart) OrderType() domain.OrderType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orderType
}

func (c *Cart) TableNumber() *int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tableNumber == nil {
		return nil
	}
	n := *c.tableNumber
	return &n
}

func (c *Cart) CustomerInfo() (name, phone string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customerName, c.customerPhone
}

// CanCheckout requires at least one item and non-blank customer name and
// phone.
func (c *Cart) CanCheckout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) > 0 &&
		strings.TrimSpace(c.customerName) != "" &&
		strings.TrimSpace(c.customerPhone) != ""
}
