// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package services

import (
	"context"

	"github.com/tomtom215/dispatchctl/internal/journal"
	"github.com/tomtom215/dispatchctl/internal/logging"
)

// JournalRunner matches store.JournalStore's subscribe-and-persist loop, so
// JournalService doesn't need to import internal/store (which already
// imports internal/journal, and would otherwise cycle back here).
type JournalRunner interface {
	Run(ctx context.Context, pub *journal.Publisher, onError func(error)) error
}

// JournalService runs the durable journal sink as a supervised service in
// the store layer: every event internal/journal.Publisher carries gets
// persisted to the journal_entries table for later replay.
type JournalService struct {
	runner JournalRunner
	pub    *journal.Publisher
}

func NewJournalService(runner JournalRunner, pub *journal.Publisher) *JournalService {
	return &JournalService{runner: runner, pub: pub}
}

// Serve implements suture.Service.
func (s *JournalService) Serve(ctx context.Context) error {
	return s.runner.Run(ctx, s.pub, func(err error) {
		logging.Warn().Err(err).Msg("journal service: persist failed")
	})
}

func (s *JournalService) String() string { return "journal-sink" }
