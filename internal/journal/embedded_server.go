// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

//go:build nats

package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer is a self-contained JetStream instance for a single-node
// deployment that wants the NATS transport without standing up an external
// broker (grounded on the teacher's internal/eventprocessor.EmbeddedServer).
type EmbeddedServer struct {
	srv       *server.Server
	clientURL string
}

// NewEmbeddedServer starts a JetStream-enabled NATS server bound to an
// OS-assigned port and storing state under storeDir.
func NewEmbeddedServer(storeDir string) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "dispatchctl",
		Host:       "127.0.0.1",
		Port:       -1, // OS-assigned
		JetStream:  true,
		StoreDir:   storeDir,
		NoLog:      true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("journal: create embedded nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("journal: embedded nats server not ready within timeout")
	}

	return &EmbeddedServer{srv: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the connection URL a NATSPublisher/NATSConfig.URL dials.
func (s *EmbeddedServer) ClientURL() string { return s.clientURL }

// Shutdown stops the server, waiting for ctx or full shutdown, whichever
// comes first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.srv.Shutdown()
	done := make(chan struct{})
	go func() {
		s.srv.WaitForShutdown()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
