// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianGraph/services/graphd"
	"github.com/AleutianAI/AleutianGraph/services/graphd/config"
	"github.com/AleutianAI/AleutianGraph/services/graphd/feed"
	badgerstore "github.com/AleutianAI/AleutianGraph/services/graphd/storage/badger"
	"github.com/AleutianAI/AleutianGraph/services/graphd/store"
	"github.com/AleutianAI/AleutianGraph/services/graphd/telemetry"
)

type serveOptions struct {
	addr        string
	metricsAddr string
	dbPath      string
	inMemory    bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the graph HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServeConfig(cmd, root, opts)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, root.config())
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "API listen address (overrides config)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Separate /metrics listen address")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Journal directory (overrides config)")
	cmd.Flags().BoolVar(&opts.inMemory, "in-memory", false, "Keep the journal in memory only")
	return cmd
}

// loadServeConfig reads the config file and applies flag overrides.
func loadServeConfig(cmd *cobra.Command, root *rootOptions, opts *serveOptions) (*config.Config, error) {
	cfg, err := config.Load(root.config())
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = opts.addr
	}
	if flags.Changed("metrics-addr") {
		cfg.Server.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("db") {
		cfg.Storage.Path = opts.dbPath
	}
	if flags.Changed("in-memory") {
		cfg.Storage.InMemory = opts.inMemory
	}
	if root.logLevel != "" {
		cfg.Log.Level = root.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServe runs until ctx is cancelled or SIGINT/SIGTERM arrives.
//
// Description:
//
//	Starts telemetry, opens the journal, replays it into a fresh store and
//	serves the API. The API server, the optional metrics server and the
//	config watcher run in one errgroup; the first failure or signal shuts
//	everything down.
func runServe(ctx context.Context, cfg *config.Config, configPath string) error {
	level := new(slog.LevelVar)
	level.Set(cfg.Log.SlogLevel())
	logger := newLogger(os.Stdout, cfg.Log.Format, level)
	slog.SetDefault(logger)

	if level.Level() <= slog.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	db, journal, err := openJournal(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer journal.Close()

	hub := feed.NewHub(feed.WithLogger(logger))
	defer hub.Close()

	st := store.New(
		store.WithJournal(journal),
		store.WithLogger(logger),
		store.WithCommitListener(hub.Publish),
	)
	svc := graphd.NewService(st,
		graphd.WithFeed(hub),
		graphd.WithServiceLogger(logger),
		graphd.WithMaxExpansionDepth(cfg.Pull.MaxExpansionDepth),
	)

	loadStart := time.Now()
	nodes, err := journal.Load(ctx)
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	st.Seed(nodes)
	svc.SetReady(true)
	logger.Info("journal replayed",
		slog.Int("nodes", len(nodes)),
		slog.Duration("duration", time.Since(loadStart)),
		slog.String("path", db.Path()))

	httpMetrics, err := telemetry.NewHTTPMetrics(otel.Meter("aleutian.graphd.http"))
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	routerCfg := graphd.RouterConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		HTTPMetrics:  httpMetrics,
		Logger:       logger,
	}
	metricsHandler := telemetry.MetricsHandler()
	if cfg.Server.MetricsAddr == "" {
		routerCfg.MetricsHandler = metricsHandler
	}

	api := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           graphd.NewRouter(routerCfg, graphd.NewHandlers(svc)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	servers := []*http.Server{api}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("graph API listening", slog.String("addr", api.Addr))
		return listen(api)
	})

	if cfg.Server.MetricsAddr != "" && metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		metricsSrv := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, metricsSrv)
		g.Go(func() error {
			logger.Info("metrics listening", slog.String("addr", metricsSrv.Addr))
			return listen(metricsSrv)
		})
	}

	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, logger, func(next *config.Config) {
				level.Set(next.Log.SlogLevel())
				logger.Info("log level updated", slog.String("level", next.Log.Level))
			})
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		svc.SetReady(false)
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	return nil
}

// openJournal opens the BadgerDB journal described by cfg.
func openJournal(cfg config.StorageConfig, logger *slog.Logger) (*badgerstore.DB, *badgerstore.Journal, error) {
	dbCfg := badgerstore.DefaultConfig(cfg.Path)
	if cfg.InMemory {
		dbCfg = badgerstore.InMemoryConfig()
	}
	dbCfg.SyncWrites = cfg.SyncWrites
	dbCfg.GCInterval = cfg.GCInterval
	dbCfg.Logger = logger

	db, err := badgerstore.OpenDB(dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	journal, err := badgerstore.NewJournal(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, journal, nil
}
