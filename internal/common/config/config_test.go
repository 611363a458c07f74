package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `
port: 3100
database:
  host: db.local
  port: 5432
  user: pos
  password: secret
  database: restaurant
rabbitmq:
  host: mq.local
  port: 5672
  user: guest
  password: guest
sync:
  queue_path: /var/lib/posd/queue.yaml
  backoff_base_sec: 1
  backoff_cap_sec: 30
reservation:
  window_minutes: 15
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	a, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Port != 3100 {
		t.Errorf("port = %d, want 3100", a.Port)
	}
	if a.Database.Host != "db.local" || a.Database.Name != "restaurant" {
		t.Errorf("database section mismatch: %+v", a.Database)
	}
	if a.Sync.QueuePath != "/var/lib/posd/queue.yaml" {
		t.Errorf("queue_path = %q", a.Sync.QueuePath)
	}
	if a.Reservation.WindowMinutes != 15 {
		t.Errorf("window_minutes = %d, want 15", a.Reservation.WindowMinutes)
	}
}

func TestLoadDefaults(t *testing.T) {
	a, err := Load(writeConfig(t, "database:\n  host: localhost\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Port != 3000 {
		t.Errorf("default port = %d", a.Port)
	}
	if a.Sync.BackoffBaseSec != 2 || a.Sync.BackoffCapSec != 60 {
		t.Errorf("default backoff = %d/%d", a.Sync.BackoffBaseSec, a.Sync.BackoffCapSec)
	}
	if a.Reservation.IntervalSec != 30 || a.Reservation.WindowMinutes != 10 {
		t.Errorf("default reservation = %+v", a.Reservation)
	}
	if a.Pricing.ServiceFeeRate != 0.10 || a.Pricing.ServiceFeeMin != 500 {
		t.Errorf("default pricing = %+v", a.Pricing)
	}
	if a.Pricing.SettingsTTLSec != 300 {
		t.Errorf("default settings ttl = %d", a.Pricing.SettingsTTLSec)
	}
}

func TestLoadRejectsMissingDBHost(t *testing.T) {
	if _, err := Load(writeConfig(t, "port: 1\n")); err == nil {
		t.Fatal("expected error for missing database host")
	}
}

func TestLoadRejectsBadBackoff(t *testing.T) {
	bad := "database:\n  host: x\nsync:\n  backoff_base_sec: 90\n  backoff_cap_sec: 10\n"
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error for cap below base")
	}
}
