package terminal

import (
	"context"
	"time"

	"posd/internal/common/config"
	"posd/internal/common/logger"
	"posd/internal/pos"
	"posd/internal/remote"
	"posd/internal/syncer"
)

// refreshTables feeds the central table layout into the POS store on the
// reservation cadence. The store keeps locally occupied tables occupied,
// so a refresh cannot undo an unsynced seat.
func refreshTables(ctx context.Context, gw remote.Gateway, store *pos.Store, conn syncer.Connectivity, cfg config.App, lg *logger.Logger) error {
	t := time.NewTicker(cfg.ReservationInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if !conn.Online() {
				continue
			}
			tables, err := gw.FetchTables(ctx)
			if err != nil {
				lg.Warn("table_refresh_failed", err, nil)
				continue
			}
			store.SetTables(tables)
		}
	}
}

// drainNotifications logs sync outcomes. A real terminal UI would
// subscribe to the same channel.
func drainNotifications(ctx context.Context, store *pos.Store, lg *logger.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-store.Notifications():
			fields := map[string]any{"message": n.Message}
			if n.OrderID != "" {
				fields["order_id"] = n.OrderID
			}
			if n.Level == "error" {
				lg.Warn(n.Action, nil, fields)
			} else {
				lg.Info(n.Action, fields)
			}
		}
	}
}
