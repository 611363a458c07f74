// Package terminal wires one POS terminal: durable queue, local store,
// sync engine, reservation reconciler and the HTTP surface. The terminal
// boots fine with the central database unreachable; the probe brings the
// engine online when it answers.
package terminal

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"posd/internal/cart"
	"posd/internal/common/config"
	"posd/internal/common/db"
	"posd/internal/common/httpx"
	"posd/internal/common/logger"
	"posd/internal/common/mq"
	"posd/internal/pos"
	"posd/internal/queue"
	"posd/internal/remote"
	"posd/internal/reservation"
	"posd/internal/settings"
	"posd/internal/syncer"
)

func Run(ctx context.Context, cfg config.App) error {
	lg := logger.New("pos-terminal")

	conn, err := db.Connect(ctx, cfg.Database)
	online := err == nil
	if err != nil {
		lg.Warn("database_unreachable", err, map[string]any{"host": cfg.Database.Host})
		if conn, err = db.Open(ctx, cfg.Database); err != nil {
			return err
		}
	}
	defer conn.Close()

	store, err := queue.Open(cfg.Sync.QueuePath)
	if err != nil {
		return err
	}
	lg.Info("queue_opened", map[string]any{"path": cfg.Sync.QueuePath, "pending": store.Len()})

	gw := remote.NewPostgres(conn)

	probe := syncer.NewProbe(conn, cfg.ProbeInterval(), online)

	// Event publishing is best effort. A terminal without a broker still
	// takes orders.
	var publisher syncer.EventPublisher
	broker, err := mq.Dial(cfg.Rabbit)
	if err != nil {
		lg.Warn("rabbitmq_unavailable", err, nil)
	} else {
		defer broker.Close()
		if err := broker.Ping(); err != nil {
			lg.Warn("rabbitmq_unavailable", err, nil)
		} else {
			publisher = syncer.NewAMQPPublisher(broker)
		}
	}

	posStore := pos.New(store, lg.With("pos-store"))
	engine := syncer.New(store, gw, probe, lg.With("sync-engine"), syncer.Options{
		BackoffBase:  cfg.BackoffBase(),
		BackoffCap:   cfg.BackoffCap(),
		PollInterval: cfg.PollInterval(),
		Publisher:    publisher,
		Listener:     posStore,
	})
	posStore.OnEnqueue(engine.Kick)

	fees := settings.NewCache(settings.ProviderFunc(gw.DeliveryFee), cfg.SettingsTTL())
	cartStore := cart.New(cart.FeePolicy{
		ServiceFeeRate: cfg.Pricing.ServiceFeeRate,
		ServiceFeeMin:  cfg.Pricing.ServiceFeeMin,
	}, fees)

	reconciler := reservation.New(gw, probe, lg.With("reservation"),
		cfg.ReservationInterval(), cfg.ReservationWindow())

	mux := Router(NewHandler(posStore, engine))
	NewCartHandler(cartStore, posStore).Register(mux)
	srv := httpx.New(":"+strconv.Itoa(cfg.Port), mux)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return probe.Run(ctx) })
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return reconciler.Run(ctx) })
	g.Go(func() error { return refreshTables(ctx, gw, posStore, probe, cfg, lg) })
	g.Go(func() error { return drainNotifications(ctx, posStore, lg) })
	if cfg.Pricing.SettingsFile != "" {
		g.Go(func() error { return fees.Watch(ctx, cfg.Pricing.SettingsFile, lg.With("settings")) })
	}
	g.Go(func() error {
		lg.Info("service_started", map[string]any{"port": cfg.Port})
		return srv.Run(ctx)
	})
	return g.Wait()
}
