// Package main - Entry point for the fibre-cost API server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"fibre-cost/api"
	"fibre-cost/internal/app"
	"fibre-cost/internal/config"
	"fibre-cost/internal/logging"
)

var version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Path to config file")
	addr := flag.String("addr", "", "Server address (overrides config)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "fibre-cost server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Address = addr
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}
	defer logging.Sync()

	a, err := app.New(ctx, cfg, version)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logging.Warn("shutdown", zap.Error(err))
		}
	}()

	logging.Info("starting fibre-cost server",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address),
		zap.String("catalog", cfg.Catalog.Path),
		zap.String("audit_driver", cfg.Audit.Driver))

	server := api.NewServer(api.Options{
		Engine:         a.Engine,
		History:        a.History,
		Audit:          a.Audit,
		Catalogs:       a.Catalogs,
		Version:        version,
		AllowedOrigins: cfg.Server.CORSOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		ReadTimeout:    cfg.Server.ReadTimeout(),
		WriteTimeout:   cfg.Server.WriteTimeout(),
	})
	return server.ListenAndServe(ctx, cfg.Server.Address)
}
