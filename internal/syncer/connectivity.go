package syncer

import (
	"context"
	"sync"
	"time"
)

// Connectivity reports whether the central store is reachable and
// notifies the engine on transitions.
type Connectivity interface {
	Online() bool
	Changes() <-chan bool
}

// Manual is a toggle, used by tests and as the base of Probe.
type Manual struct {
	mu      sync.Mutex
	online  bool
	changes chan bool
}

func NewManual(online bool) *Manual {
	return &Manual{online: online, changes: make(chan bool, 8)}
}

func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Manual) Changes() <-chan bool { return m.changes }

// Set flips the state; only transitions are published.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()
	if !changed {
		return
	}
	select {
	case m.changes <- online:
	default:
		// engine is behind; it checks Online() before every dispatch anyway
	}
}

// Pinger is anything with a cheap health check. The pgx pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe flips a Manual toggle based on periodic pings.
type Probe struct {
	*Manual
	pinger   Pinger
	interval time.Duration
}

func NewProbe(pinger Pinger, interval time.Duration, startOnline bool) *Probe {
	return &Probe{Manual: NewManual(startOnline), pinger: pinger, interval: interval}
}

// Run probes until ctx is done. One failed ping marks the terminal
// offline; the next successful one brings it back.
func (p *Probe) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, p.interval)
			err := p.pinger.Ping(pctx)
			cancel()
			p.Set(err == nil)
		}
	}
}
