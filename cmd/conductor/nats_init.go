// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

//go:build nats

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/dispatchctl/internal/config"
	"github.com/tomtom215/dispatchctl/internal/journal"
	"github.com/tomtom215/dispatchctl/internal/logging"
)

// eventBridge mirrors every event the in-process Publisher carries onto an
// external NATS JetStream subject, so a second process can subscribe to
// dispatchctl's domain events (grounded on the teacher's
// cmd/server/nats_init.go InitNATS/NATSComponents wiring, trimmed to this
// repo's single-bus domain).
type eventBridge struct {
	pub    *journal.Publisher
	nats   *journal.NATSPublisher
	server *journal.EmbeddedServer
}

// initEventBridge starts the external NATS transport when cfg.NATS.Enabled,
// starting an embedded JetStream server first if no external URL is
// configured. Returns nil when disabled, so callers can skip adding it to
// the supervisor tree without a type switch.
func initEventBridge(cfg *config.Config, pub *journal.Publisher) (*eventBridge, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("external NATS event bus disabled, using in-process bus only")
		return nil, nil
	}

	url := cfg.NATS.URL
	var embedded *journal.EmbeddedServer
	if url == "" {
		srv, err := journal.NewEmbeddedServer("")
		if err != nil {
			return nil, fmt.Errorf("start embedded nats server: %w", err)
		}
		embedded = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("embedded NATS server started")
	}

	natsPub, err := journal.NewNATSPublisher(journal.NATSConfig{URL: url, Stream: cfg.NATS.Stream})
	if err != nil {
		if embedded != nil {
			_ = embedded.Shutdown(context.Background())
		}
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &eventBridge{pub: pub, nats: natsPub, server: embedded}, nil
}

// Serve subscribes to the in-process Publisher and forwards every message to
// the external broker until ctx is canceled.
func (b *eventBridge) Serve(ctx context.Context) error {
	msgs, err := b.pub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("event bridge: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := b.nats.PublishMessage(msg); err != nil {
				logging.Warn().Err(err).Msg("event bridge: forward to nats failed")
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

func (b *eventBridge) String() string { return "nats-event-bridge" }

// Close releases the NATS connection and, if one was started, the embedded
// JetStream server.
func (b *eventBridge) Close() error {
	err := b.nats.Close()
	if b.server != nil {
		_ = b.server.Shutdown(context.Background())
	}
	return err
}
