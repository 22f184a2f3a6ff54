// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package upstream talks to the IPTV backend (Dispatcharr) REST API:
// channels, channel groups, streams, providers ("M3U accounts"), logos, EPG
// sources, and the live channel-stats endpoint the bandwidth tracker polls.
//
// Client is the interface every other package depends on; HTTPClient is the
// only production implementation, and BreakerClient wraps any Client with a
// gobreaker circuit breaker so a flapping or overloaded upstream degrades
// the pipeline and prober cleanly instead of hanging every caller on
// network timeouts (spec.md §7, "Upstream unavailable").
package upstream
