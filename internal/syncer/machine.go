// Package syncer drains the local queue against the central store.
//
// Per-entry state machine: pending -> in flight -> confirmed, retry with
// backoff, or dropped on a permanent rejection. The chain invariant: the
// head entry of each resource is the only dispatchable one, so delivery
// is strictly FIFO per order.
package syncer

import (
	"time"

	"posd/internal/apperr"
	"posd/internal/queue"
)

type Action int

const (
	ActionConfirm Action = iota
	ActionRetry
	ActionDrop
)

type Decision struct {
	Action  Action
	RetryAt time.Time
	Reason  string
}

// Decide is the pure transition applied after a delivery attempt.
// attempts is the count including the attempt that just finished.
func Decide(err error, attempts int, now time.Time, base, max time.Duration) Decision {
	switch {
	case err == nil:
		return Decision{Action: ActionConfirm}
	case apperr.Permanent(err):
		return Decision{Action: ActionDrop, Reason: err.Error()}
	default:
		return Decision{
			Action:  ActionRetry,
			RetryAt: now.Add(Backoff(base, max, attempts)),
			Reason:  err.Error(),
		}
	}
}

// Backoff doubles per attempt starting at base, capped at max.
func Backoff(base, max time.Duration, attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// NextEligible returns the dispatchable entries: the head of each
// dependency chain whose retry backoff has elapsed, in queue order.
func NextEligible(entries []queue.Entry, notBefore map[string]time.Time, now time.Time) []queue.Entry {
	var out []queue.Entry
	seen := map[string]bool{}
	for _, e := range entries {
		if seen[e.Resource] {
			continue
		}
		seen[e.Resource] = true
		if wait, ok := notBefore[e.ID]; ok && now.Before(wait) {
			continue
		}
		out = append(out, e)
	}
	return out
}
