// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package config

import "time"

// Config holds all application configuration loaded from environment
// variables, an optional YAML file, and built-in defaults (layered in that
// precedence order by LoadWithKoanf).
//
// Configuration Categories:
//
//  1. Upstream: the Dispatcharr connection (base URL, auth, timeouts)
//  2. Engine: the auto-creation pipeline's tunables
//  3. Prober: the stream prober's concurrency, ramp, and retry policy
//  4. Bandwidth: the bandwidth/watch tracker's poll cadence and retention
//  5. Notify: outbound notification dispatch (webhook, rate limit)
//  6. NATS: optional external event bus (disabled by default — in-process
//     gochannel pub/sub is used otherwise)
//  7. Database: the sqlite catalog path
//  8. Server: the ops HTTP listener (/healthz, /metrics)
//  9. Logging: level/format/caller info
type Config struct {
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Engine    EngineConfig    `koanf:"engine"`
	Prober    ProberConfig    `koanf:"prober"`
	Bandwidth BandwidthConfig `koanf:"bandwidth"`
	Notify    NotifyConfig    `koanf:"notify"`
	NATS      NATSConfig      `koanf:"nats"`
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// UpstreamConfig configures the Dispatcharr REST client.
type UpstreamConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	Token          string        `koanf:"token"` // set directly to skip the username/password login exchange
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// Circuit breaker tunables guarding every upstream call (spec.md §7,
	// "Upstream unavailable" handling).
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
}

// EngineConfig configures the auto-creation pipeline.
type EngineConfig struct {
	DefaultOrphanAction string `koanf:"default_orphan_action"`  // "delete", "disable", "ignore"
	ProbeOnSortSem      int    `koanf:"probe_on_sort_semaphore"` // concurrent probes allowed during sort-triggered reprobing
	PageSize            int    `koanf:"page_size"`
}

// ProberConfig configures the StreamProber.
type ProberConfig struct {
	MaxConcurrentProbes  int           `koanf:"max_concurrent_probes"`
	ProbeRetryCount      int           `koanf:"probe_retry_count"`
	ProbeRetryDelay      time.Duration `koanf:"probe_retry_delay"`
	Distribution         string        `koanf:"distribution"` // "fill_first", "round_robin", "least_loaded"
	SortKeys             []string      `koanf:"sort_keys"`
	DeprioritizeFailed   bool          `koanf:"deprioritize_failed_streams"`
	ConfigDir            string        `koanf:"config_dir"` // where probe_history.json lives
	BinaryPath           string        `koanf:"ffprobe_path"`
	ProbeTimeout         time.Duration `koanf:"probe_timeout"`
	BitrateSampleSeconds time.Duration `koanf:"bitrate_sample_duration"`
	SweepInterval        time.Duration `koanf:"sweep_interval"`

	// InterProbeSpacing paces dispatch beneath the ramp-up limiter with a
	// token bucket (golang.org/x/time/rate), smoothing bursts of probes
	// hitting the same provider the instant ramp-room opens up.
	InterProbeSpacing time.Duration `koanf:"inter_probe_spacing"`
}

// BandwidthConfig configures the BandwidthTracker.
type BandwidthConfig struct {
	PollInterval  time.Duration `koanf:"poll_interval"`
	RetentionDays int           `koanf:"retention_days"`
	Timezone      string        `koanf:"timezone"` // IANA zone name, defaults to the host's local zone
}

// NotifyConfig configures outbound notification dispatch.
type NotifyConfig struct {
	WebhookURL     string            `koanf:"webhook_url"`
	WebhookHeaders map[string]string `koanf:"webhook_headers"`
	WebhookSecret  string            `koanf:"webhook_secret"` // bcrypt-hashed at rest by internal/store; plaintext here only at load time
	Timeout        time.Duration     `koanf:"timeout"`
	MinInterval    time.Duration     `koanf:"min_interval"` // RateLimitedDispatcher's per-sink gap
}

// NATSConfig configures an optional external event bus. Disabled by
// default: the in-process Watermill gochannel transport
// (internal/journal.Publisher) is used instead, matching spec.md's scope
// (no external broker is required by this spec).
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Stream  string `koanf:"stream"`
}

// DatabaseConfig configures the sqlite-backed catalog (internal/store).
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// ServerConfig configures the ops HTTP listener (/healthz, /metrics).
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // "debug", "info", "warn", "error"
	Format string `koanf:"format"` // "json", "console"
	Caller bool   `koanf:"caller"`
}
