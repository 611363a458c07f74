// Package reservation promotes tables to reserved shortly before their
// booked time. The central store is the source of truth; one polling
// tick is a pure function of (now, reservations, tables) so the promotion
// rule is testable without timers.
package reservation

import (
	"context"
	"time"

	"posd/internal/common/logger"
	"posd/internal/domain"
	"posd/internal/remote"
	"posd/internal/syncer"
)

// TableUpdate is one promotion decided by a tick.
type TableUpdate struct {
	TableID string
	Status  domain.TableStatus
}

// Plan returns the tables to promote: active reservations booked today
// within [now, now+window] whose table is neither occupied nor already
// reserved. The window start is inclusive: a 19:00 booking with a 10
// minute window promotes at exactly 18:50. Clearing reserved status is
// the POS flow's job, never this one's.
func Plan(now time.Time, window time.Duration, reservations []domain.Reservation, tables []domain.Table) []TableUpdate {
	byID := make(map[string]domain.Table, len(tables))
	for _, t := range tables {
		byID[t.ID] = t
	}
	var updates []TableUpdate
	seen := map[string]bool{}
	for _, r := range reservations {
		if r.Cancelled || seen[r.TableID] {
			continue
		}
		if !sameDay(now, r.BookedAt) {
			continue
		}
		if r.BookedAt.Before(now) || r.BookedAt.After(now.Add(window)) {
			continue
		}
		t, ok := byID[r.TableID]
		if !ok || t.Status == domain.TableOccupied || t.Status == domain.TableReserved {
			continue
		}
		seen[r.TableID] = true
		updates = append(updates, TableUpdate{TableID: r.TableID, Status: domain.TableReserved})
	}
	return updates
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Reconciler runs Plan on a fixed interval and applies the updates.
type Reconciler struct {
	gw       remote.Gateway
	conn     syncer.Connectivity
	lg       *logger.Logger
	interval time.Duration
	window   time.Duration
	now      func() time.Time
}

func New(gw remote.Gateway, conn syncer.Connectivity, lg *logger.Logger, interval, window time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &Reconciler{gw: gw, conn: conn, lg: lg, interval: interval, window: window, now: time.Now}
}

// Run ticks until ctx is done. Ticks are skipped entirely while offline;
// a failed pass is logged and retried on the next tick.
func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if !r.conn.Online() {
				continue
			}
			if err := r.Tick(ctx); err != nil {
				r.lg.Warn("reservation_tick_failed", err, nil)
			}
		}
	}
}

// Tick fetches state, plans and applies. Partial application is fine:
// a table missed this tick is picked up on the next one.
func (r *Reconciler) Tick(ctx context.Context) error {
	reservations, err := r.gw.FetchActiveReservations(ctx)
	if err != nil {
		return err
	}
	tables, err := r.gw.FetchTables(ctx)
	if err != nil {
		return err
	}
	for _, u := range Plan(r.now(), r.window, reservations, tables) {
		if _, err := r.gw.UpdateTableStatus(ctx, u.TableID, u.Status, nil); err != nil {
			r.lg.Warn("table_promote_failed", err, map[string]any{"table_id": u.TableID})
			continue
		}
		r.lg.Info("table_reserved", map[string]any{"table_id": u.TableID})
	}
	return nil
}
