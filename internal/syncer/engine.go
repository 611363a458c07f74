package syncer

import (
	"context"
	"fmt"
	"time"

	"posd/internal/apperr"
	"posd/internal/common/logger"
	"posd/internal/domain"
	"posd/internal/queue"
	"posd/internal/remote"
)

// Listener receives the outcome of each resolved queue entry. The POS
// store implements it to reconcile optimistic state.
type Listener interface {
	// OperationConfirmed carries the server's view of the order; nil for
	// cancellations, which return no body.
	OperationConfirmed(e queue.Entry, o *domain.Order)
	// OperationFailed is only called for permanent failures; transient
	// failures stay queued and are invisible beyond the pending count.
	OperationFailed(e queue.Entry, err error)
}

type Engine struct {
	store    *queue.Store
	gw       remote.Gateway
	conn     Connectivity
	pub      EventPublisher
	listener Listener
	lg       *logger.Logger

	base, cap    time.Duration
	pollInterval time.Duration
	now          func() time.Time

	notBefore map[string]time.Time
	kick      chan struct{}
}

type Options struct {
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	PollInterval time.Duration
	Publisher    EventPublisher // optional
	Listener     Listener       // optional
	Now          func() time.Time
}

func New(store *queue.Store, gw remote.Gateway, conn Connectivity, lg *logger.Logger, opts Options) *Engine {
	if opts.BackoffBase == 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.BackoffCap == 0 {
		opts.BackoffCap = 60 * time.Second
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:        store,
		gw:           gw,
		conn:         conn,
		pub:          opts.Publisher,
		listener:     opts.Listener,
		lg:           lg,
		base:         opts.BackoffBase,
		cap:          opts.BackoffCap,
		pollInterval: opts.PollInterval,
		now:          opts.Now,
		notBefore:    make(map[string]time.Time),
		kick:         make(chan struct{}, 1),
	}
}

func (e *Engine) SetListener(l Listener) { e.listener = l }

// Kick asks the engine to drain soon. Safe from any goroutine; never blocks.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Pending is the number of queued, unconfirmed operations.
func (e *Engine) Pending() int { return e.store.Len() }

func (e *Engine) Online() bool { return e.conn.Online() }

// Run drains until ctx is done. An offline-to-online transition triggers
// an immediate full drain; otherwise the poll ticker picks up entries
// whose backoff has elapsed.
func (e *Engine) Run(ctx context.Context) error {
	if n := e.store.Len(); n > 0 {
		e.lg.Info("queue_resumed", map[string]any{"pending": n})
	}
	t := time.NewTicker(e.pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case online := <-e.conn.Changes():
			if online {
				e.lg.Info("connectivity_online", map[string]any{"pending": e.store.Len()})
				e.Drain(ctx)
			} else {
				e.lg.Info("connectivity_offline", map[string]any{"pending": e.store.Len()})
			}
		case <-e.kick:
			e.Drain(ctx)
		case <-t.C:
			e.Drain(ctx)
		}
	}
}

// Drain repeatedly dispatches eligible entries until a pass makes no
// progress. A confirmation unblocks the next entry of the same chain, so
// a fully online drain empties whole chains in one call.
func (e *Engine) Drain(ctx context.Context) {
	for {
		if ctx.Err() != nil || !e.conn.Online() {
			return
		}
		progress := false
		for _, entry := range NextEligible(e.store.List(), e.notBefore, e.now()) {
			if ctx.Err() != nil || !e.conn.Online() {
				return
			}
			if e.dispatch(ctx, entry) {
				progress = true
			}
		}
		if !progress {
			return
		}
	}
}

// dispatch delivers one entry and applies the transition. Returns true
// when the entry was resolved (confirmed or dropped).
func (e *Engine) dispatch(ctx context.Context, entry queue.Entry) bool {
	order, err := e.deliver(ctx, entry)
	d := Decide(err, entry.Attempts+1, e.now(), e.base, e.cap)
	switch d.Action {
	case ActionConfirm:
		if entry.Kind == queue.KindCreateOrder && order != nil {
			if rerr := e.store.ResolveResource(entry.Resource, order.ID); rerr != nil {
				e.lg.Error("resolve_resource_failed", rerr, map[string]any{"entry_id": entry.ID})
			}
		}
		if err := e.store.Dequeue(entry.ID); err != nil {
			e.lg.Error("dequeue_failed", err, map[string]any{"entry_id": entry.ID})
		}
		delete(e.notBefore, entry.ID)
		e.lg.Debug("entry_confirmed", map[string]any{
			"entry_id": entry.ID, "kind": entry.Kind, "resource": entry.Resource,
		})
		if e.listener != nil {
			e.listener.OperationConfirmed(entry, order)
		}
		e.publish(ctx, entry, order)
		return true
	case ActionDrop:
		if err := e.store.Dequeue(entry.ID); err != nil {
			e.lg.Error("dequeue_failed", err, map[string]any{"entry_id": entry.ID})
		}
		delete(e.notBefore, entry.ID)
		e.lg.Error("entry_rejected", err, map[string]any{
			"entry_id": entry.ID, "kind": entry.Kind, "resource": entry.Resource,
			"error_kind": apperr.Kind(err),
		})
		if e.listener != nil {
			e.listener.OperationFailed(entry, err)
		}
		return true
	default:
		if ferr := e.store.Fail(entry.ID, d.Reason); ferr != nil {
			e.lg.Error("record_failure_failed", ferr, map[string]any{"entry_id": entry.ID})
		}
		e.notBefore[entry.ID] = d.RetryAt
		e.lg.Warn("entry_retry_scheduled", err, map[string]any{
			"entry_id": entry.ID, "kind": entry.Kind,
			"attempts": entry.Attempts + 1, "retry_at": d.RetryAt.UTC().Format(time.RFC3339),
		})
		return false
	}
}

func (e *Engine) deliver(ctx context.Context, entry queue.Entry) (*domain.Order, error) {
	switch entry.Kind {
	case queue.KindCreateOrder:
		p := entry.CreateOrder
		o, err := e.gw.CreateOrder(ctx, domain.Order{
			ID:            p.LocalID,
			Status:        domain.StatusPending,
			Type:          p.Type,
			Source:        p.Source,
			Items:         p.Items,
			Total:         p.Total,
			TableNumber:   p.TableNumber,
			CustomerName:  p.CustomerName,
			CustomerPhone: p.CustomerPhone,
			CreatedAt:     entry.Created(),
		})
		if err != nil {
			return nil, err
		}
		return &o, nil
	case queue.KindUpdateStatus:
		o, err := e.gw.UpdateOrderStatus(ctx, entry.UpdateStatus.OrderID, entry.UpdateStatus.Status)
		if err != nil {
			return nil, err
		}
		return &o, nil
	case queue.KindRecordPayment:
		o, err := e.gw.RecordPayment(ctx, entry.RecordPayment.OrderID, entry.RecordPayment.Method)
		if err != nil {
			return nil, err
		}
		return &o, nil
	case queue.KindCancelOrder:
		return nil, e.gw.CancelOrder(ctx, entry.CancelOrder.OrderID, entry.CancelOrder.Reason)
	case queue.KindUpdateItems:
		o, err := e.gw.UpdateOrderItems(ctx, entry.UpdateItems.OrderID, entry.UpdateItems.Items)
		if err != nil {
			return nil, err
		}
		return &o, nil
	default:
		return nil, fmt.Errorf("unknown entry kind %q", entry.Kind)
	}
}

// publish announces the confirmed operation. Broker trouble never blocks
// the queue; the event is logged and lost.
func (e *Engine) publish(ctx context.Context, entry queue.Entry, order *domain.Order) {
	if e.pub == nil {
		return
	}
	event := ""
	switch entry.Kind {
	case queue.KindCreateOrder:
		event = EventCreated
	case queue.KindUpdateStatus:
		event = EventStatusChanged
	case queue.KindRecordPayment:
		event = EventPaymentRecorded
	case queue.KindCancelOrder:
		event = EventCancelled
	case queue.KindUpdateItems:
		event = EventItemsUpdated
	}
	o := domain.Order{ID: entry.Resource, Status: domain.StatusCancelled}
	if order != nil {
		o = *order
	}
	if err := e.pub.Publish(ctx, event, o); err != nil {
		e.lg.Warn("event_publish_failed", err, map[string]any{"event": event, "order_id": o.ID})
	}
}
