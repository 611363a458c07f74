package syncer

import (
	"errors"
	"testing"
	"time"

	"posd/internal/apperr"
	"posd/internal/queue"
)

func TestBackoff(t *testing.T) {
	base, max := 2*time.Second, 60*time.Second
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 0},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{20, 60 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(base, max, tt.attempts); got != tt.want {
			t.Errorf("Backoff(attempts=%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestDecide(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base, max := 2*time.Second, 60*time.Second

	t.Run("success confirms", func(t *testing.T) {
		d := Decide(nil, 1, now, base, max)
		if d.Action != ActionConfirm {
			t.Fatalf("action = %v, want confirm", d.Action)
		}
	})

	t.Run("validation drops", func(t *testing.T) {
		d := Decide(apperr.Validationf("bad order"), 1, now, base, max)
		if d.Action != ActionDrop {
			t.Fatalf("action = %v, want drop", d.Action)
		}
	})

	t.Run("not found drops", func(t *testing.T) {
		d := Decide(apperr.NotFoundf("order gone"), 3, now, base, max)
		if d.Action != ActionDrop {
			t.Fatalf("action = %v, want drop", d.Action)
		}
	})

	t.Run("transient retries with backoff", func(t *testing.T) {
		d := Decide(apperr.Unavailablef("refused"), 2, now, base, max)
		if d.Action != ActionRetry {
			t.Fatalf("action = %v, want retry", d.Action)
		}
		if want := now.Add(4 * time.Second); !d.RetryAt.Equal(want) {
			t.Errorf("retry at %v, want %v", d.RetryAt, want)
		}
	})

	t.Run("unknown error retries", func(t *testing.T) {
		d := Decide(errors.New("boom"), 1, now, base, max)
		if d.Action != ActionRetry {
			t.Fatalf("action = %v, want retry", d.Action)
		}
	})
}

func TestNextEligible(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []queue.Entry{
		{ID: "e1", Resource: "loc_a"},
		{ID: "e2", Resource: "loc_a"}, // behind e1 in the chain
		{ID: "e3", Resource: "loc_b"},
	}

	t.Run("one per chain", func(t *testing.T) {
		got := NextEligible(entries, nil, now)
		if len(got) != 2 || got[0].ID != "e1" || got[1].ID != "e3" {
			t.Fatalf("eligible = %+v, want [e1 e3]", got)
		}
	})

	t.Run("backoff blocks whole chain", func(t *testing.T) {
		nb := map[string]time.Time{"e1": now.Add(time.Second)}
		got := NextEligible(entries, nb, now)
		if len(got) != 1 || got[0].ID != "e3" {
			t.Fatalf("eligible = %+v, want [e3]", got)
		}
	})

	t.Run("elapsed backoff restores eligibility", func(t *testing.T) {
		nb := map[string]time.Time{"e1": now.Add(-time.Second)}
		got := NextEligible(entries, nb, now)
		if len(got) != 2 {
			t.Fatalf("eligible = %+v, want two entries", got)
		}
	})
}
