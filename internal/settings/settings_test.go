package settings

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCacheServesWithinTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	c := NewCache(ProviderFunc(func(context.Context) (float64, error) {
		calls++
		return 1500, nil
	}), 5*time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		fee, err := c.DeliveryFee(context.Background())
		if err != nil {
			t.Fatalf("DeliveryFee: %v", err)
		}
		if fee != 1500 {
			t.Fatalf("fee = %v, want 1500", fee)
		}
	}
	if calls != 1 {
		t.Errorf("provider called %d times within TTL, want 1", calls)
	}

	now = now.Add(5*time.Minute + time.Second)
	if _, err := c.DeliveryFee(context.Background()); err != nil {
		t.Fatalf("DeliveryFee after TTL: %v", err)
	}
	if calls != 2 {
		t.Errorf("provider called %d times after TTL, want 2", calls)
	}
}

func TestCacheInvalidate(t *testing.T) {
	calls := 0
	c := NewCache(ProviderFunc(func(context.Context) (float64, error) {
		calls++
		return 1000, nil
	}), time.Hour)

	_, _ = c.DeliveryFee(context.Background())
	c.Invalidate()
	_, _ = c.DeliveryFee(context.Background())
	if calls != 2 {
		t.Errorf("provider called %d times, want 2 after invalidate", calls)
	}
}

func TestCacheServesStaleOnError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	healthy := true
	c := NewCache(ProviderFunc(func(context.Context) (float64, error) {
		if !healthy {
			return 0, errors.New("connection refused")
		}
		return 900, nil
	}), time.Minute).WithClock(func() time.Time { return now })

	if _, err := c.DeliveryFee(context.Background()); err != nil {
		t.Fatalf("warm fetch: %v", err)
	}

	healthy = false
	now = now.Add(2 * time.Minute)
	fee, err := c.DeliveryFee(context.Background())
	if err != nil {
		t.Fatalf("stale fetch: %v", err)
	}
	if fee != 900 {
		t.Errorf("fee = %v, want stale 900", fee)
	}
}

func TestCacheColdErrorPropagates(t *testing.T) {
	c := NewCache(ProviderFunc(func(context.Context) (float64, error) {
		return 0, errors.New("down")
	}), time.Minute)
	if _, err := c.DeliveryFee(context.Background()); err == nil {
		t.Fatal("expected error when no cached value exists")
	}
}
