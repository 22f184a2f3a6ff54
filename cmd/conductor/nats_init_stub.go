// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

//go:build !nats

package main

import (
	"context"

	"github.com/tomtom215/dispatchctl/internal/config"
	"github.com/tomtom215/dispatchctl/internal/journal"
	"github.com/tomtom215/dispatchctl/internal/logging"
)

// eventBridge is a stub for non-NATS builds; the in-process Publisher
// remains the only event transport.
type eventBridge struct{}

// initEventBridge is a no-op stub for non-NATS builds. It warns once if the
// operator enabled NATS in config without building with -tags nats.
func initEventBridge(cfg *config.Config, _ *journal.Publisher) (*eventBridge, error) {
	if cfg.NATS.Enabled {
		logging.Warn().Msg("nats.enabled=true but NATS support not compiled (build with -tags nats)")
	}
	return nil, nil
}

func (b *eventBridge) Serve(_ context.Context) error { return nil }
func (b *eventBridge) String() string                { return "nats-event-bridge" }
func (b *eventBridge) Close() error                  { return nil }
