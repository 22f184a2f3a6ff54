// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package store

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/dispatchctl/internal/journal"
)

func TestJournalStoreAppendAndList(t *testing.T) {
	db := setupTestDB(t)
	js := NewJournalStore(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	payload := map[string]any{"execution_id": float64(1), "status": "completed"}

	if err := js.Append(ctx, journal.Event{Type: journal.EventRuleExecuted, OccurredAt: now, Payload: payload}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := js.Append(ctx, journal.Event{Type: journal.EventRuleExecuted, OccurredAt: now.Add(time.Minute), Payload: payload}); err != nil {
		t.Fatalf("Append second: %v", err)
	}
	if err := js.Append(ctx, journal.Event{Type: journal.EventRuleRolledBack, OccurredAt: now, Payload: payload}); err != nil {
		t.Fatalf("Append other type: %v", err)
	}

	entries, err := js.ListByEventType(ctx, journal.EventRuleExecuted, 0)
	if err != nil {
		t.Fatalf("ListByEventType: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListByEventType len = %d, want 2", len(entries))
	}
	if !entries[0].OccurredAt.Before(entries[1].OccurredAt) {
		t.Fatalf("ListByEventType not oldest-first: %+v", entries)
	}

	limited, err := js.ListByEventType(ctx, journal.EventRuleExecuted, 1)
	if err != nil {
		t.Fatalf("ListByEventType limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("ListByEventType limited len = %d, want 1", len(limited))
	}
}

func TestJournalStoreRunPersistsPublishedEvents(t *testing.T) {
	db := setupTestDB(t)
	js := NewJournalStore(db)

	pub := journal.NewPublisher()
	defer func() { _ = pub.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = js.Run(ctx, pub, nil)
		close(done)
	}()

	ev := journal.Event{
		ID:         "evt-1",
		Type:       journal.EventProbeCompleted,
		OccurredAt: time.Now().Truncate(time.Second),
		Payload:    map[string]any{"stream_id": float64(42)},
	}
	if err := pub.Publish(ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		entries, err := js.ListByEventType(context.Background(), journal.EventProbeCompleted, 0)
		if err != nil {
			t.Fatalf("ListByEventType: %v", err)
		}
		if len(entries) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for Run to persist the published event")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
