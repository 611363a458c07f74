// Package pos holds the terminal's view of open orders and tables. Every
// action is applied optimistically and enqueued for delivery; the sync
// engine reports back through the Listener methods and the store
// reconciles without regressing newer local edits.
package pos

import (
	"sort"
	"sync"

	"posd/internal/apperr"
	"posd/internal/common/logger"
	"posd/internal/domain"
	"posd/internal/queue"
)

// Notification is a user-visible sync outcome, consumed by the terminal UI.
type Notification struct {
	Level   string `json:"level"`
	Action  string `json:"action"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message"`
}

// orderState keeps the optimistic and confirmed copies apart. confirmed
// is nil until the central store has acknowledged the create.
type orderState struct {
	optimistic domain.Order
	confirmed  *domain.Order
	serverID   string
	// table status before this order occupied it, for revert on a
	// permanently rejected create
	prevTableStatus *domain.TableStatus
}

type CreateOrderInput struct {
	Type          domain.OrderType
	Source        domain.OrderSource
	TableNumber   *int
	CustomerName  string
	CustomerPhone string
	Items         []domain.OrderItem
}

type Store struct {
	mu     sync.Mutex
	q      *queue.Store
	lg     *logger.Logger
	orders map[string]*orderState // keyed by terminal-local order ID
	tables map[int]*domain.Table  // keyed by table number
	notes  chan Notification
	kick   func()
}

func New(q *queue.Store, lg *logger.Logger) *Store {
	return &Store{
		q:      q,
		lg:     lg,
		orders: make(map[string]*orderState),
		tables: make(map[int]*domain.Table),
		notes:  make(chan Notification, 16),
	}
}

// OnEnqueue registers the engine's Kick so a freshly queued entry is
// picked up without waiting for the next poll tick.
func (s *Store) OnEnqueue(fn func()) { s.kick = fn }

func (s *Store) Notifications() <-chan Notification { return s.notes }

func (s *Store) notify(n Notification) {
	select {
	case s.notes <- n:
	default:
		s.lg.Warn("notification_dropped", nil, map[string]any{"action": n.Action})
	}
}

func (s *Store) enqueue(e queue.Entry) error {
	if err := s.q.Enqueue(e); err != nil {
		return err
	}
	if s.kick != nil {
		s.kick()
	}
	return nil
}

// CreateOrder validates, applies the order locally and queues the create.
// The returned order carries the terminal-local ID until confirmation.
func (s *Store) CreateOrder(in CreateOrderInput) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	localID := domain.NewID(domain.IDPrefixLocalOrder)
	entry, err := queue.NewCreateOrder(queue.CreateOrderPayload{
		LocalID:       localID,
		Type:          in.Type,
		Source:        in.Source,
		TableNumber:   in.TableNumber,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		Items:         in.Items,
	})
	if err != nil {
		return domain.Order{}, err
	}

	st := &orderState{optimistic: domain.Order{
		ID:            localID,
		Status:        domain.StatusPending,
		Type:          in.Type,
		Source:        in.Source,
		Items:         append([]domain.OrderItem(nil), in.Items...),
		Total:         entry.CreateOrder.Total,
		TableNumber:   in.TableNumber,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		CreatedAt:     entry.Created(),
	}}

	if in.Type == domain.OrderDineIn && in.TableNumber != nil {
		if tbl, ok := s.tables[*in.TableNumber]; ok {
			if tbl.Status == domain.TableOccupied {
				return domain.Order{}, apperr.Validationf("table %d is already occupied", *in.TableNumber)
			}
			prev := tbl.Status
			st.prevTableStatus = &prev
			tbl.Status = domain.TableOccupied
			id := localID
			tbl.CurrentOrderID = &id
		}
	}

	if err := s.enqueue(entry); err != nil {
		s.revertTableLocked(st)
		return domain.Order{}, err
	}
	s.orders[localID] = st
	s.lg.Info("order_created", map[string]any{"order_id": localID, "type": in.Type, "total": st.optimistic.Total})
	return st.optimistic.Clone(), nil
}

// UpdateStatus moves the order along the kitchen flow.
func (s *Store) UpdateStatus(orderID string, status domain.OrderStatus) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, st, err := s.findLocked(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !domain.CanTransition(st.optimistic.Status, status) {
		return domain.Order{}, apperr.Validationf("cannot move order from %s to %s", st.optimistic.Status, status)
	}
	entry, err := queue.NewUpdateStatus(key, status)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.enqueue(entry); err != nil {
		return domain.Order{}, err
	}
	st.optimistic.Status = status
	return st.optimistic.Clone(), nil
}

// RecordPayment closes out the order and frees its table.
func (s *Store) RecordPayment(orderID string, method domain.PaymentMethod) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, st, err := s.findLocked(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if st.optimistic.Status == domain.StatusCancelled {
		return domain.Order{}, apperr.Validationf("order %s is cancelled", orderID)
	}
	entry, err := queue.NewRecordPayment(key, method)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.enqueue(entry); err != nil {
		return domain.Order{}, err
	}
	m := method
	st.optimistic.PaymentMethod = &m
	s.freeTableLocked(st)
	return st.optimistic.Clone(), nil
}

// Cancel voids the order and frees its table.
func (s *Store) Cancel(orderID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, st, err := s.findLocked(orderID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(st.optimistic.Status, domain.StatusCancelled) {
		return apperr.Validationf("order %s can no longer be cancelled", orderID)
	}
	entry, err := queue.NewCancelOrder(key, reason)
	if err != nil {
		return err
	}
	if err := s.enqueue(entry); err != nil {
		return err
	}
	st.optimistic.Status = domain.StatusCancelled
	s.freeTableLocked(st)
	return nil
}

// UpdateItems replaces the order lines and recomputes the total.
func (s *Store) UpdateItems(orderID string, items []domain.OrderItem) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, st, err := s.findLocked(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if domain.IsTerminal(st.optimistic.Status) {
		return domain.Order{}, apperr.Validationf("order %s is closed", orderID)
	}
	entry, err := queue.NewUpdateItems(key, items)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.enqueue(entry); err != nil {
		return domain.Order{}, err
	}
	st.optimistic.Items = append([]domain.OrderItem(nil), items...)
	st.optimistic.Total = domain.ItemsTotal(items)
	return st.optimistic.Clone(), nil
}

// findLocked resolves either the local or the server order ID.
func (s *Store) findLocked(orderID string) (string, *orderState, error) {
	if st, ok := s.orders[orderID]; ok {
		return orderID, st, nil
	}
	for key, st := range s.orders {
		if st.serverID == orderID {
			return key, st, nil
		}
	}
	return "", nil, apperr.NotFoundf("order %s", orderID)
}

func (s *Store) freeTableLocked(st *orderState) {
	if st.optimistic.TableNumber == nil {
		return
	}
	if tbl, ok := s.tables[*st.optimistic.TableNumber]; ok {
		tbl.Status = domain.TableAvailable
		tbl.CurrentOrderID = nil
	}
}

func (s *Store) revertTableLocked(st *orderState) {
	if st.optimistic.TableNumber == nil || st.prevTableStatus == nil {
		return
	}
	if tbl, ok := s.tables[*st.optimistic.TableNumber]; ok {
		tbl.Status = *st.prevTableStatus
		tbl.CurrentOrderID = nil
	}
}

// Orders returns the optimistic view, oldest first.
func (s *Store) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, st := range s.orders {
		out = append(out, st.optimistic.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Order returns one order by local or server ID.
func (s *Store) Order(orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, st, err := s.findLocked(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return st.optimistic.Clone(), nil
}

// Tables returns the table map sorted by number.
func (s *Store) Tables() []domain.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// SetTables replaces the table cache with a remote snapshot, then
// re-applies local occupancy for orders still pending here: the remote
// snapshot cannot know about an order that has not synced yet.
func (s *Store) SetTables(tables []domain.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[int]*domain.Table, len(tables))
	for _, t := range tables {
		tc := t
		s.tables[t.Number] = &tc
	}
	for localID, st := range s.orders {
		if domain.IsTerminal(st.optimistic.Status) || st.optimistic.TableNumber == nil {
			continue
		}
		if tbl, ok := s.tables[*st.optimistic.TableNumber]; ok && tbl.Status != domain.TableOccupied {
			id := localID
			tbl.Status = domain.TableOccupied
			tbl.CurrentOrderID = &id
		}
	}
}

// OperationConfirmed reconciles the server response. The server copy
// becomes ground truth unless a later entry for the same order is still
// queued, in which case the optimistic view stays ahead of it.
func (s *Store) OperationConfirmed(e queue.Entry, o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.orders[e.Resource]
	if !ok {
		return
	}
	if e.Kind == queue.KindCreateOrder && o != nil {
		st.serverID = o.ID
		s.notify(Notification{
			Level: "info", Action: "order_synced", OrderID: e.Resource,
			Message: "order confirmed as " + o.ID,
		})
	}
	hasLater := s.q.HasLater(e.Resource, e.ID)
	if o != nil {
		c := o.Clone()
		st.confirmed = &c
		if !hasLater {
			st.optimistic = o.Clone()
		}
	} else if e.Kind == queue.KindCancelOrder {
		if st.confirmed != nil {
			st.confirmed.Status = domain.StatusCancelled
		}
		if !hasLater {
			st.optimistic.Status = domain.StatusCancelled
		}
	}
}

// OperationFailed reverts the optimistic change of a permanently
// rejected entry and surfaces the failure.
func (s *Store) OperationFailed(e queue.Entry, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.orders[e.Resource]
	if !ok {
		return
	}
	if e.Kind == queue.KindCreateOrder {
		s.revertTableLocked(st)
		delete(s.orders, e.Resource)
		s.notify(Notification{
			Level: "error", Action: "order_rejected", OrderID: e.Resource,
			Message: "order could not be submitted: " + errMessage(err),
		})
		return
	}
	if st.confirmed != nil {
		st.optimistic = st.confirmed.Clone()
	}
	s.notify(Notification{
		Level: "error", Action: "sync_rejected", OrderID: e.Resource,
		Message: string(e.Kind) + " rejected: " + errMessage(err),
	})
}

func errMessage(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
