// Package config loads the terminal configuration from config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type DB struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
	Name string `yaml:"database"`
}

type MQ struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
}

type Sync struct {
	QueuePath       string `yaml:"queue_path"`
	PollIntervalMS  int    `yaml:"poll_interval_ms"`
	BackoffBaseSec  int    `yaml:"backoff_base_sec"`
	BackoffCapSec   int    `yaml:"backoff_cap_sec"`
	ProbeIntervalMS int    `yaml:"probe_interval_ms"`
}

type Reservation struct {
	IntervalSec   int `yaml:"interval_sec"`
	WindowMinutes int `yaml:"window_minutes"`
}

type Pricing struct {
	ServiceFeeRate float64 `yaml:"service_fee_rate"`
	ServiceFeeMin  float64 `yaml:"service_fee_min"`
	SettingsTTLSec int     `yaml:"settings_ttl_sec"`
	SettingsFile   string  `yaml:"settings_file"`
}

type App struct {
	Port        int         `yaml:"port"`
	Database    DB          `yaml:"database"`
	Rabbit      MQ          `yaml:"rabbitmq"`
	Sync        Sync        `yaml:"sync"`
	Reservation Reservation `yaml:"reservation"`
	Pricing     Pricing     `yaml:"pricing"`
}

func Load(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, fmt.Errorf("read config: %w", err)
	}
	var a App
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, fmt.Errorf("parse config: %w", err)
	}
	a.applyDefaults()
	if err := a.validate(); err != nil {
		return App{}, err
	}
	return a, nil
}

func (a *App) applyDefaults() {
	if a.Port == 0 {
		a.Port = 3000
	}
	if a.Sync.QueuePath == "" {
		a.Sync.QueuePath = "data/queue.yaml"
	}
	if a.Sync.PollIntervalMS == 0 {
		a.Sync.PollIntervalMS = 500
	}
	if a.Sync.BackoffBaseSec == 0 {
		a.Sync.BackoffBaseSec = 2
	}
	if a.Sync.BackoffCapSec == 0 {
		a.Sync.BackoffCapSec = 60
	}
	if a.Sync.ProbeIntervalMS == 0 {
		a.Sync.ProbeIntervalMS = 5000
	}
	if a.Reservation.IntervalSec == 0 {
		a.Reservation.IntervalSec = 30
	}
	if a.Reservation.WindowMinutes == 0 {
		a.Reservation.WindowMinutes = 10
	}
	if a.Pricing.ServiceFeeRate == 0 {
		a.Pricing.ServiceFeeRate = 0.10
	}
	if a.Pricing.ServiceFeeMin == 0 {
		a.Pricing.ServiceFeeMin = 500
	}
	if a.Pricing.SettingsTTLSec == 0 {
		a.Pricing.SettingsTTLSec = 300
	}
}

func (a *App) validate() error {
	if a.Database.Host == "" {
		return errors.New("invalid config: missing database host")
	}
	if a.Sync.BackoffCapSec < a.Sync.BackoffBaseSec {
		return errors.New("invalid config: backoff cap below base")
	}
	return nil
}

func (a App) PollInterval() time.Duration  { return time.Duration(a.Sync.PollIntervalMS) * time.Millisecond }
func (a App) ProbeInterval() time.Duration { return time.Duration(a.Sync.ProbeIntervalMS) * time.Millisecond }
func (a App) BackoffBase() time.Duration   { return time.Duration(a.Sync.BackoffBaseSec) * time.Second }
func (a App) BackoffCap() time.Duration    { return time.Duration(a.Sync.BackoffCapSec) * time.Second }
func (a App) ReservationInterval() time.Duration {
	return time.Duration(a.Reservation.IntervalSec) * time.Second
}
func (a App) ReservationWindow() time.Duration {
	return time.Duration(a.Reservation.WindowMinutes) * time.Minute
}
func (a App) SettingsTTL() time.Duration { return time.Duration(a.Pricing.SettingsTTLSec) * time.Second }

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
