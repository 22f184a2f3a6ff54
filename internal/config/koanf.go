// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/dispatchctl/config.yaml",
	"/etc/dispatchctl/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:                 "",
			RequestTimeout:          10 * time.Second,
			BreakerMaxRequests:      1,
			BreakerInterval:         60 * time.Second,
			BreakerTimeout:          30 * time.Second,
			BreakerFailureThreshold: 5,
		},
		Engine: EngineConfig{
			DefaultOrphanAction: "disable",
			ProbeOnSortSem:      3,
			PageSize:            200,
		},
		Prober: ProberConfig{
			MaxConcurrentProbes:  4,
			ProbeRetryCount:      2,
			ProbeRetryDelay:      5 * time.Second,
			Distribution:         "fill_first",
			SortKeys:             []string{"resolution", "bitrate"},
			DeprioritizeFailed:   true,
			ConfigDir:            "/data/dispatchctl",
			BinaryPath:           "ffprobe",
			ProbeTimeout:         15 * time.Second,
			BitrateSampleSeconds: 5 * time.Second,
			SweepInterval:        6 * time.Hour,
			InterProbeSpacing:    250 * time.Millisecond,
		},
		Bandwidth: BandwidthConfig{
			PollInterval:  10 * time.Second,
			RetentionDays: 90,
			Timezone:      "",
		},
		Notify: NotifyConfig{
			WebhookURL:     "",
			WebhookHeaders: map[string]string{},
			Timeout:        10 * time.Second,
			MinInterval:    2 * time.Second,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Stream:  "dispatchctl",
		},
		Database: DatabaseConfig{
			Path: "/data/dispatchctl.sqlite",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8420,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// UPSTREAM_BASE_URL -> upstream.base_url
	// PROBER_MAX_CONCURRENT_PROBES -> prober.max_concurrent_probes
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"prober.sort_keys",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - UPSTREAM_BASE_URL -> upstream.base_url
//   - PROBER_MAX_CONCURRENT_PROBES -> prober.max_concurrent_probes
//   - BANDWIDTH_POLL_INTERVAL -> bandwidth.poll_interval
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Upstream mappings
		"upstream_base_url":                  "upstream.base_url",
		"upstream_username":                  "upstream.username",
		"upstream_password":                  "upstream.password",
		"upstream_token":                     "upstream.token",
		"upstream_request_timeout":           "upstream.request_timeout",
		"upstream_breaker_max_requests":      "upstream.breaker_max_requests",
		"upstream_breaker_interval":          "upstream.breaker_interval",
		"upstream_breaker_timeout":           "upstream.breaker_timeout",
		"upstream_breaker_failure_threshold": "upstream.breaker_failure_threshold",

		// Engine mappings
		"engine_default_orphan_action":   "engine.default_orphan_action",
		"engine_probe_on_sort_semaphore": "engine.probe_on_sort_semaphore",
		"engine_page_size":               "engine.page_size",

		// Prober mappings
		"prober_max_concurrent_probes":      "prober.max_concurrent_probes",
		"prober_probe_retry_count":          "prober.probe_retry_count",
		"prober_probe_retry_delay":          "prober.probe_retry_delay",
		"prober_distribution":               "prober.distribution",
		"prober_sort_keys":                  "prober.sort_keys",
		"prober_deprioritize_failed_streams": "prober.deprioritize_failed_streams",
		"prober_config_dir":                 "prober.config_dir",
		"prober_ffprobe_path":               "prober.ffprobe_path",
		"prober_probe_timeout":              "prober.probe_timeout",
		"prober_bitrate_sample_duration":    "prober.bitrate_sample_duration",
		"prober_sweep_interval":             "prober.sweep_interval",
		"prober_inter_probe_spacing":        "prober.inter_probe_spacing",

		// Bandwidth mappings
		"bandwidth_poll_interval":  "bandwidth.poll_interval",
		"bandwidth_retention_days": "bandwidth.retention_days",
		"bandwidth_timezone":       "bandwidth.timezone",

		// Notify mappings
		"notify_webhook_url":  "notify.webhook_url",
		"notify_timeout":      "notify.timeout",
		"notify_min_interval": "notify.min_interval",

		// NATS mappings
		"nats_enabled": "nats.enabled",
		"nats_url":     "nats.url",
		"nats_stream":  "nats.stream",

		// Database mappings
		"database_path": "database.path",

		// Server mappings
		"http_host":               "server.host",
		"http_port":               "server.port",
		"server_shutdown_timeout": "server.shutdown_timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
// This is useful for:
//   - Hot-reload scenarios (with proper mutex protection)
//   - Custom configuration sources
//   - Testing with mock configurations
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
//
// Example usage:
//
//	var cfgMu sync.RWMutex
//	var cfg *Config
//
//	err := WatchConfigFile(configPath, func() {
//	    cfgMu.Lock()
//	    defer cfgMu.Unlock()
//	    newCfg, err := LoadWithKoanf()
//	    if err != nil {
//	        log.Printf("Config reload failed: %v", err)
//	        return
//	    }
//	    cfg = newCfg
//	    log.Println("Configuration reloaded successfully")
//	})
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	// Start watching the file for changes
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
