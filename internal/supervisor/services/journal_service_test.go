// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/dispatchctl/internal/journal"
)

type mockJournalRunner struct {
	err      error
	ran      chan struct{}
	gotError func(error)
}

func (m *mockJournalRunner) Run(ctx context.Context, _ *journal.Publisher, onError func(error)) error {
	m.gotError = onError
	close(m.ran)
	<-ctx.Done()
	return m.err
}

func TestJournalServiceImplementsSutureService(t *testing.T) {
	var _ suture.Service = (*JournalService)(nil)
}

func TestJournalServiceServeDelegatesToRunner(t *testing.T) {
	runner := &mockJournalRunner{ran: make(chan struct{}), err: context.Canceled}
	pub := journal.NewPublisher()
	svc := NewJournalService(runner, pub)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	<-runner.ran
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestJournalServiceString(t *testing.T) {
	svc := NewJournalService(&mockJournalRunner{ran: make(chan struct{})}, journal.NewPublisher())
	if got := svc.String(); got != "journal-sink" {
		t.Errorf("String() = %q, want %q", got, "journal-sink")
	}
}
