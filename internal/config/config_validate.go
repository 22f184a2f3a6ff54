// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package config

import "fmt"

// Validate checks that required configuration is present and internally
// consistent, returning the first problem found.
func (c *Config) Validate() error {
	if err := c.validateUpstream(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateProber(); err != nil {
		return err
	}
	if err := c.validateBandwidth(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateUpstream() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL is required")
	}
	if c.Upstream.RequestTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateEngine() error {
	switch c.Engine.DefaultOrphanAction {
	case "delete", "disable", "ignore":
	default:
		return fmt.Errorf("ENGINE_DEFAULT_ORPHAN_ACTION must be one of delete, disable, ignore, got %q", c.Engine.DefaultOrphanAction)
	}
	if c.Engine.ProbeOnSortSem < 1 {
		return fmt.Errorf("ENGINE_PROBE_ON_SORT_SEMAPHORE must be at least 1")
	}
	return nil
}

func (c *Config) validateProber() error {
	if c.Prober.MaxConcurrentProbes < 1 || c.Prober.MaxConcurrentProbes > 16 {
		return fmt.Errorf("PROBER_MAX_CONCURRENT_PROBES must be between 1 and 16, got %d", c.Prober.MaxConcurrentProbes)
	}
	if c.Prober.ProbeRetryCount < 0 || c.Prober.ProbeRetryCount > 5 {
		return fmt.Errorf("PROBER_PROBE_RETRY_COUNT must be between 0 and 5, got %d", c.Prober.ProbeRetryCount)
	}
	switch c.Prober.Distribution {
	case "fill_first", "round_robin", "least_loaded":
	default:
		return fmt.Errorf("PROBER_DISTRIBUTION must be one of fill_first, round_robin, least_loaded, got %q", c.Prober.Distribution)
	}
	return nil
}

func (c *Config) validateBandwidth() error {
	if c.Bandwidth.PollInterval <= 0 {
		return fmt.Errorf("BANDWIDTH_POLL_INTERVAL must be positive")
	}
	if c.Bandwidth.RetentionDays < 1 {
		return fmt.Errorf("BANDWIDTH_RETENTION_DAYS must be at least 1")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of json, console, got %q", c.Logging.Format)
	}
	return nil
}
