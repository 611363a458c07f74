package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"posd/internal/common/config"
	"posd/internal/common/logger"
	"posd/internal/terminal"
)

func main() {
	mode := flag.String("mode", "terminal", "terminal")
	cfgPath := flag.String("config", "", "path to YAML config (default: probe config.yaml)")
	port := flag.Int("port", 0, "override the configured HTTP port")
	flag.Parse()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := *cfgPath
	if path == "" {
		var err error
		if path, err = config.FindConfig(); err != nil {
			lg.Error("config_not_found", err, nil)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_invalid", err, map[string]any{"path": path})
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}

	switch *mode {
	case "terminal":
		lg.Info("service_started", map[string]any{"service": "pos-terminal", "port": cfg.Port, "config": path})
		if err := terminal.Run(ctx, cfg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode must be: terminal")
		os.Exit(2)
	}
}
