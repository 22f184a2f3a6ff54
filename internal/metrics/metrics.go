// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package metrics defines dispatchctl's Prometheus metrics as package-level
// vars registered through promauto at import time, the same pattern the
// teacher uses for its sync-layer metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Circuit breaker metrics, one series per upstream named breaker.
var (
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatchctl_circuit_breaker_state",
		Help: "Circuit breaker state: 0=closed, 1=half-open, 2=open.",
	}, []string{"name"})

	CircuitBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions.",
	}, []string{"name", "from", "to"})

	CircuitBreakerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_circuit_breaker_requests_total",
		Help: "Requests passed through a circuit breaker, by outcome.",
	}, []string{"name", "outcome"})

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatchctl_circuit_breaker_consecutive_failures",
		Help: "Current consecutive failure count per named breaker.",
	}, []string{"name"})
)

// Auto-creation pipeline metrics.
var (
	PipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_pipeline_runs_total",
		Help: "Auto-creation pipeline executions, by mode and outcome.",
	}, []string{"mode", "status"})

	PipelineRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatchctl_pipeline_run_duration_seconds",
		Help:    "Wall-clock duration of a full pipeline run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	PipelineStreamsEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_pipeline_streams_evaluated_total",
		Help: "Streams evaluated against rules.",
	}, []string{"mode"})

	PipelineStreamsMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_pipeline_streams_matched_total",
		Help: "Streams that matched at least one rule.",
	}, []string{"mode"})

	PipelineConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_pipeline_conflicts_total",
		Help: "Multi-rule conflicts recorded during a pipeline run, by conflict type.",
	}, []string{"conflict_type"})

	PipelineRollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_pipeline_rollbacks_total",
		Help: "Execution rollbacks performed, by outcome.",
	}, []string{"status"})
)

// Stream prober metrics.
var (
	ProberProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_prober_probes_total",
		Help: "ffprobe attempts, by result status.",
	}, []string{"status"})

	ProberProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatchctl_prober_probe_duration_seconds",
		Help:    "Wall-clock duration of one ffprobe attempt.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	ProberActiveProbes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatchctl_prober_active_probes",
		Help: "Probes currently in flight across all accounts.",
	})

	ProberAccountHolds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatchctl_prober_account_held",
		Help: "1 while a provider account is in an overload hold, 0 otherwise.",
	}, []string{"provider"})

	ProberQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatchctl_prober_queue_depth",
		Help: "Streams queued for probing.",
	})
)

// Bandwidth tracker metrics.
var (
	BandwidthPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_bandwidth_polls_total",
		Help: "Bandwidth tracker poll cycles, by outcome.",
	}, []string{"status"})

	BandwidthBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_bandwidth_bytes_total",
		Help: "Cumulative bytes attributed to a channel across all polls.",
	}, []string{"channel"})

	BandwidthActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatchctl_bandwidth_active_clients",
		Help: "Unique client connections currently open across all channels.",
	})

	BandwidthWatchEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_bandwidth_watch_events_total",
		Help: "Watch start/stop events detected, by event type.",
	}, []string{"event"})
)

// Notification dispatch metrics.
var (
	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_notifications_sent_total",
		Help: "Notifications dispatched to sinks, by sink and outcome.",
	}, []string{"sink", "outcome"})

	NotificationsRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatchctl_notifications_rate_limited_total",
		Help: "Notifications dropped by the consumer-side rate limiter.",
	}, []string{"sink"})
)
