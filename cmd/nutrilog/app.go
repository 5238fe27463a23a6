// cmd/nutrilog/app.go
package main

import (
	"context"
	"fmt"

	"nutrilog/internal/config"
	"nutrilog/internal/gateway"
	"nutrilog/internal/logging"
	"nutrilog/internal/logstore"
	"nutrilog/internal/storage"
)

type rootOptions struct {
	configPath string
	dbPath     string
	logMode    string
}

// app is everything a subcommand needs, wired from configuration.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	storage *storage.SQLiteStorage
	gateway *gateway.Client
	store   *logstore.Store
}

func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dbPath != "" {
		cfg.Storage.DBPath = opts.dbPath
	}
	if opts.logMode != "" {
		cfg.Logging.Mode = opts.logMode
	}

	log, err := logging.New(cfg.Logging.Mode)
	if err != nil {
		return nil, err
	}

	timeout, err := cfg.Gateway.GetTimeout()
	if err != nil {
		return nil, err
	}
	if cfg.Gateway.APIKey == "" {
		log.Warn("no CalorieNinjas API key configured; lookups will be rejected upstream")
	}
	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, gateway.WithTimeout(timeout))

	st, err := storage.NewSQLiteStorage(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	store, err := logstore.Open(ctx,
		storage.SlotPersister{Storage: st, Name: cfg.Storage.Slot},
		gw,
		logstore.WithLogger(log.With("component", "logstore")),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		storage: st,
		gateway: gw,
		store:   store,
	}, nil
}

func (a *app) Close() {
	if err := a.storage.Close(); err != nil {
		a.log.Warn("failed to close storage", "error", err)
	}
	a.log.Sync()
}
