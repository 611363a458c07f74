package syncer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"posd/internal/apperr"
	"posd/internal/common/logger"
	"posd/internal/domain"
	"posd/internal/queue"
)

type fakeGateway struct {
	mu     sync.Mutex
	calls  []string
	errs   map[string]error // op -> error returned for every call of that op
	nextID int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{errs: map[string]error{}}
}

func (g *fakeGateway) setErr(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.errs, op)
	} else {
		g.errs[op] = err
	}
}

func (g *fakeGateway) record(call, op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.errs[op]; err != nil {
		return err
	}
	g.calls = append(g.calls, call)
	return nil
}

func (g *fakeGateway) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) CreateOrder(_ context.Context, o domain.Order) (domain.Order, error) {
	if err := g.record("create:"+o.ID, "create"); err != nil {
		return domain.Order{}, err
	}
	g.mu.Lock()
	g.nextID++
	id := fmt.Sprintf("ord_%d", g.nextID)
	g.mu.Unlock()
	c := o.Clone()
	c.ID = id
	c.Status = domain.StatusPending
	return c, nil
}

func (g *fakeGateway) UpdateOrderStatus(_ context.Context, id string, s domain.OrderStatus) (domain.Order, error) {
	if err := g.record(fmt.Sprintf("status:%s:%s", id, s), "status"); err != nil {
		return domain.Order{}, err
	}
	return domain.Order{ID: id, Status: s}, nil
}

func (g *fakeGateway) RecordPayment(_ context.Context, id string, m domain.PaymentMethod) (domain.Order, error) {
	if err := g.record(fmt.Sprintf("payment:%s:%s", id, m), "payment"); err != nil {
		return domain.Order{}, err
	}
	return domain.Order{ID: id, Status: domain.StatusDelivered, PaymentMethod: &m}, nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, id, _ string) error {
	return g.record("cancel:"+id, "cancel")
}

func (g *fakeGateway) UpdateOrderItems(_ context.Context, id string, items []domain.OrderItem) (domain.Order, error) {
	if err := g.record(fmt.Sprintf("items:%s:%d", id, len(items)), "items"); err != nil {
		return domain.Order{}, err
	}
	return domain.Order{ID: id, Items: items, Total: domain.ItemsTotal(items)}, nil
}

func (g *fakeGateway) FetchTables(context.Context) ([]domain.Table, error) { return nil, nil }
func (g *fakeGateway) UpdateTableStatus(_ context.Context, id string, s domain.TableStatus, _ *string) (domain.Table, error) {
	return domain.Table{ID: id, Status: s}, nil
}
func (g *fakeGateway) FetchActiveReservations(context.Context) ([]domain.Reservation, error) {
	return nil, nil
}
func (g *fakeGateway) DeliveryFee(context.Context) (float64, error) { return 0, nil }

type fakeListener struct {
	mu        sync.Mutex
	confirmed []string
	failed    []string
}

func (l *fakeListener) OperationConfirmed(e queue.Entry, _ *domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmed = append(l.confirmed, e.ID)
}

func (l *fakeListener) OperationFailed(e queue.Entry, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, e.ID)
}

type engineFixture struct {
	store    *queue.Store
	path     string
	gw       *fakeGateway
	conn     *Manual
	listener *fakeListener
	engine   *Engine
	now      time.Time
}

func newFixture(t *testing.T, online bool) *engineFixture {
	t.Helper()
	f := &engineFixture{
		path:     filepath.Join(t.TempDir(), "queue.yaml"),
		gw:       newFakeGateway(),
		conn:     NewManual(online),
		listener: &fakeListener{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	var err error
	f.store, err = queue.Open(f.path)
	require.NoError(t, err)
	f.engine = New(f.store, f.gw, f.conn, logger.NewWriter("syncer-test", io.Discard), Options{
		Now: func() time.Time { return f.now },
	})
	f.engine.SetListener(f.listener)
	return f
}

func (f *engineFixture) enqueueCreate(t *testing.T, localID string) queue.Entry {
	t.Helper()
	e, err := queue.NewCreateOrder(queue.CreateOrderPayload{
		LocalID: localID,
		Type:    domain.OrderTakeaway,
		Source:  domain.SourcePOS,
		Items:   []domain.OrderItem{{Name: "lagman", Price: 2500, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Enqueue(e))
	return e
}

func (f *engineFixture) enqueueStatus(t *testing.T, orderID string, s domain.OrderStatus) queue.Entry {
	t.Helper()
	e, err := queue.NewUpdateStatus(orderID, s)
	require.NoError(t, err)
	require.NoError(t, f.store.Enqueue(e))
	return e
}

func TestDrainDeliversChainInOrder(t *testing.T) {
	f := newFixture(t, true)
	f.enqueueCreate(t, "loc_a")
	f.enqueueStatus(t, "loc_a", domain.StatusConfirmed)
	f.enqueueStatus(t, "loc_a", domain.StatusPreparing)

	f.engine.Drain(context.Background())

	require.Equal(t, []string{
		"create:loc_a",
		"status:ord_1:confirmed",
		"status:ord_1:preparing",
	}, f.gw.callLog(), "dependent entries must carry the server-assigned ID, in FIFO order")
	require.Zero(t, f.store.Len())
	require.Len(t, f.listener.confirmed, 3)
}

func TestDrainSkipsWhileOffline(t *testing.T) {
	f := newFixture(t, false)
	f.enqueueCreate(t, "loc_a")

	f.engine.Drain(context.Background())
	require.Empty(t, f.gw.callLog())
	require.Equal(t, 1, f.engine.Pending())

	f.conn.Set(true)
	f.engine.Drain(context.Background())
	require.Equal(t, []string{"create:loc_a"}, f.gw.callLog())
	require.Zero(t, f.engine.Pending())
}

func TestTransientFailureRetriesWithBackoff(t *testing.T) {
	f := newFixture(t, true)
	e := f.enqueueCreate(t, "loc_a")
	f.gw.setErr("create", apperr.Unavailablef("connection refused"))

	f.engine.Drain(context.Background())
	require.Equal(t, 1, f.store.Len(), "transient failure keeps the entry")
	got := f.store.List()[0]
	require.Equal(t, e.ID, got.ID)
	require.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.LastError)

	// backoff not yet elapsed: no further attempt
	f.gw.setErr("create", nil)
	f.engine.Drain(context.Background())
	require.Empty(t, f.gw.callLog())

	f.now = f.now.Add(3 * time.Second)
	f.engine.Drain(context.Background())
	require.Equal(t, []string{"create:loc_a"}, f.gw.callLog())
	require.Zero(t, f.store.Len())
}

func TestRetryingHeadBlocksItsChain(t *testing.T) {
	f := newFixture(t, true)
	f.enqueueCreate(t, "loc_a")
	f.enqueueStatus(t, "loc_a", domain.StatusConfirmed)
	f.enqueueCreate(t, "loc_b")
	f.gw.setErr("create", apperr.Unavailablef("timeout"))

	f.engine.Drain(context.Background())
	require.Empty(t, f.gw.callLog(), "status must not jump ahead of its failed create")
	require.Equal(t, 3, f.store.Len())

	f.gw.setErr("create", nil)
	f.now = f.now.Add(3 * time.Second)
	f.engine.Drain(context.Background())
	// both chain heads go out in the first pass, the dependent status in the next
	require.Equal(t, []string{
		"create:loc_a",
		"create:loc_b",
		"status:ord_1:confirmed",
	}, f.gw.callLog())
}

func TestPermanentFailureDropsAndNotifies(t *testing.T) {
	f := newFixture(t, true)
	e := f.enqueueCreate(t, "loc_a")
	f.gw.setErr("create", apperr.Validationf("menu item no longer exists"))

	f.engine.Drain(context.Background())
	require.Zero(t, f.store.Len(), "permanently rejected entry is dropped")
	require.Equal(t, []string{e.ID}, f.listener.failed)
	require.Empty(t, f.listener.confirmed)

	// never redelivered
	f.gw.setErr("create", nil)
	f.now = f.now.Add(time.Minute)
	f.engine.Drain(context.Background())
	require.Empty(t, f.gw.callLog())
}

func TestRestartResumesWithAttemptsIntact(t *testing.T) {
	f := newFixture(t, true)
	f.enqueueCreate(t, "loc_a")
	f.enqueueStatus(t, "loc_a", domain.StatusConfirmed)
	f.gw.setErr("create", apperr.Unavailablef("broken pipe"))
	f.engine.Drain(context.Background())

	// simulate process restart: reload the queue from disk
	store2, err := queue.Open(f.path)
	require.NoError(t, err)
	require.Equal(t, 2, store2.Len())
	require.Equal(t, 1, store2.List()[0].Attempts)

	gw2 := newFakeGateway()
	engine2 := New(store2, gw2, NewManual(true), logger.NewWriter("syncer-test", io.Discard), Options{
		Now: time.Now,
	})
	engine2.Drain(context.Background())
	require.Equal(t, []string{"create:loc_a", "status:ord_1:confirmed"}, gw2.callLog())
	require.Zero(t, store2.Len())
}

func TestNoDoubleDeliveryAfterConfirm(t *testing.T) {
	f := newFixture(t, true)
	f.enqueueCreate(t, "loc_a")
	f.engine.Drain(context.Background())
	f.engine.Drain(context.Background())
	f.engine.Drain(context.Background())
	require.Equal(t, []string{"create:loc_a"}, f.gw.callLog())
}

func TestRunDrainsOnConnectivityTransition(t *testing.T) {
	f := newFixture(t, false)
	f.enqueueCreate(t, "loc_a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.engine.Run(ctx)
		close(done)
	}()

	f.conn.Set(true)
	require.Eventually(t, func() bool { return f.engine.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
