// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package main is the entry point for dispatchctl's conductor process: the
// long-running service that owns the sqlite catalog, the stream prober and
// bandwidth tracker poll loops, and the scheduled auto-creation pipeline
// trigger, all supervised by a suture tree (spec.md §5 "Long-running
// process model").
//
// # Application Architecture
//
// main initializes components in this order:
//
//  1. Configuration: Koanf v2, layered env > file > defaults
//  2. Logging: zerolog, configured from Config.Logging
//  3. Storage: sqlite catalog (internal/store), every sub-store opened
//  4. Upstream: the Dispatcharr REST client, circuit-breaker wrapped
//  5. Notification: webhook sink, rate-limited
//  6. Domain services: StreamProber, BandwidthTracker, AutoCreationEngine
//  7. Supervisor tree: store/workers/trigger layers, one per long-lived task
//  8. Ops HTTP listener: /healthz and /metrics only — this is ambient
//     operability, not the HTTP feature router the spec excludes
//
// # Build Tags
//
// An external NATS event bus is wired in internal/journal.NewNATSPublisher
// behind the "nats" build tag; without it, the in-process Watermill
// gochannel transport is used.
//
//	go build -tags nats ./cmd/conductor
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the supervisor tree stops
// every service (each within its own shutdown timeout), then the process
// exits.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/dispatchctl/internal/bandwidth"
	"github.com/tomtom215/dispatchctl/internal/config"
	"github.com/tomtom215/dispatchctl/internal/engine"
	"github.com/tomtom215/dispatchctl/internal/journal"
	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/notify"
	"github.com/tomtom215/dispatchctl/internal/prober"
	"github.com/tomtom215/dispatchctl/internal/store"
	"github.com/tomtom215/dispatchctl/internal/supervisor"
	"github.com/tomtom215/dispatchctl/internal/supervisor/services"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("starting dispatchctl conductor")

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open sqlite catalog")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing sqlite catalog")
		}
	}()

	ruleStore := store.NewRuleStore(db)
	statsStore := store.NewStatsStore(db)
	bandwidthStore := store.NewBandwidthStore(db)
	journalStore := store.NewJournalStore(db)
	webhookSecretStore := store.NewWebhookSecretStore(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Notify.WebhookSecret != "" {
		if err := webhookSecretStore.SetSecret(ctx, cfg.Notify.WebhookSecret); err != nil {
			logging.Fatal().Err(err).Msg("failed to persist webhook secret")
		}
	}

	registry, err := ruleStore.LoadTagRegistry(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load tag registry")
	}
	normalizer, err := ruleStore.LoadNormalizer(ctx, registry)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load normalization rules")
	}

	client := upstream.NewBreakerClient(upstream.NewHTTPClient(upstream.HTTPClientConfig{
		BaseURL: cfg.Upstream.BaseURL,
		Token:   cfg.Upstream.Token,
		Timeout: cfg.Upstream.RequestTimeout,
	}), "upstream")

	sink := notify.NewRateLimitedDispatcher(notify.NewWebhookSink(notify.WebhookConfig{
		URL:     cfg.Notify.WebhookURL,
		Headers: cfg.Notify.WebhookHeaders,
		Timeout: cfg.Notify.Timeout,
	}), cfg.Notify.MinInterval)

	publisher := journal.NewPublisher()

	streamProber := prober.New(client, statsStore, sink, prober.Config{
		MaxConcurrentProbes: cfg.Prober.MaxConcurrentProbes,
		ProbeRetryCount:     cfg.Prober.ProbeRetryCount,
		ProbeRetryDelay:     cfg.Prober.ProbeRetryDelay,
		Distribution:        prober.DistributionStrategy(cfg.Prober.Distribution),
		Reorder: prober.ReorderConfig{
			Keys:                      sortKeys(cfg.Prober.SortKeys),
			DeprioritizeFailedStreams: cfg.Prober.DeprioritizeFailed,
		},
		ConfigDir: cfg.Prober.ConfigDir,
		Runner: prober.RunnerConfig{
			BinaryPath:            cfg.Prober.BinaryPath,
			ProbeTimeout:          cfg.Prober.ProbeTimeout,
			BitrateSampleDuration: cfg.Prober.BitrateSampleSeconds,
		},
		SweepInterval:     cfg.Prober.SweepInterval,
		InterProbeSpacing: cfg.Prober.InterProbeSpacing,
	})

	autoCreationEngine := engine.New(client, registry, normalizer, streamProber, cfg.Engine.ProbeOnSortSem)

	var loc *time.Location
	if cfg.Bandwidth.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Bandwidth.Timezone)
		if err != nil {
			logging.Warn().Err(err).Str("timezone", cfg.Bandwidth.Timezone).Msg("invalid bandwidth timezone, using local time")
			loc = nil
		}
	}
	tracker := bandwidth.New(client, bandwidthStore, publisher, bandwidth.Config{
		PollInterval:  cfg.Bandwidth.PollInterval,
		RetentionDays: cfg.Bandwidth.RetentionDays,
		Location:      loc,
	})

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	bridge, err := initEventBridge(cfg, publisher)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start nats event bridge")
	}
	if bridge != nil {
		defer func() {
			if err := bridge.Close(); err != nil {
				logging.Error().Err(err).Msg("error closing nats event bridge")
			}
		}()
		tree.AddStoreService(bridge)
	}

	tree.AddStoreService(services.NewJournalService(journalStore, publisher))
	tree.AddWorkerService(streamProber)
	tree.AddWorkerService(tracker)
	tree.AddTriggerService(services.NewEngineTriggerService(autoCreationEngine, ruleStore, ruleStore, cfg.Prober.SweepInterval))
	tree.AddTriggerService(services.NewHTTPServerService(opsServer(cfg), cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
		}
	}
	logging.Info().Msg("conductor stopped gracefully")
}

// opsServer builds the minimal ops HTTP listener: /healthz for liveness
// and /metrics for Prometheus scraping. It deliberately carries none of the
// spec's domain routes — this is ambient operability, not the HTTP feature
// router spec.md's Non-goals exclude.
func opsServer(cfg *config.Config) *http.Server {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	r.Use(httprate.LimitByIP(100, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func sortKeys(keys []string) []prober.SortKey {
	out := make([]prober.SortKey, len(keys))
	for i, k := range keys {
		out[i] = prober.SortKey(k)
	}
	return out
}
