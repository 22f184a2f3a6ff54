// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dispatchctl/internal/journal"
)

// JournalStore persists journal.Events published over internal/journal's
// in-process bus into journal_entries — the durable sink that package's doc
// comment calls out as an external collaborator. Nothing about this store
// is specific to one EventType; it records whatever it's handed.
type JournalStore struct {
	db *DB
}

func NewJournalStore(db *DB) *JournalStore { return &JournalStore{db: db} }

// Append records one event, JSON-encoding its Payload.
func (s *JournalStore) Append(ctx context.Context, ev journal.Event) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("store: encode journal payload for %s: %w", ev.Type, err)
	}
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO journal_entries (event_type, occurred_at, payload_json) VALUES (?, ?, ?)`,
		string(ev.Type), ev.OccurredAt, string(payloadJSON))
	if err != nil {
		return fmt.Errorf("store: append journal entry %s: %w", ev.Type, err)
	}
	return nil
}

// ListByEventType returns every entry of one type, oldest first, bounded to
// limit rows (0 means unbounded).
func (s *JournalStore) ListByEventType(ctx context.Context, eventType journal.EventType, limit int) ([]journal.Event, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	query := `SELECT event_type, occurred_at, payload_json FROM journal_entries WHERE event_type = ? ORDER BY id ASC`
	args := []any{string(eventType)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list journal entries %s: %w", eventType, err)
	}
	defer rows.Close()

	var out []journal.Event
	for rows.Next() {
		var ev journal.Event
		var eventType string
		var payloadJSON string
		if err := rows.Scan(&eventType, &ev.OccurredAt, &payloadJSON); err != nil {
			return nil, fmt.Errorf("store: scan journal entry: %w", err)
		}
		ev.Type = journal.EventType(eventType)
		if err := json.Unmarshal([]byte(payloadJSON), &ev.Payload); err != nil {
			return nil, fmt.Errorf("store: decode journal entry payload: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Run subscribes to pub and writes every event it publishes to
// journal_entries until ctx is cancelled. It is the durable collaborator
// internal/journal's package doc defers to — call it once, in its own
// goroutine, from cmd/conductor's wiring.
func (s *JournalStore) Run(ctx context.Context, pub *journal.Publisher, onError func(error)) error {
	msgs, err := pub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("store: subscribe to journal: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev journal.Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				msg.Ack()
				if onError != nil {
					onError(fmt.Errorf("store: decode journal message: %w", err))
				}
				continue
			}
			if err := s.Append(ctx, ev); err != nil && onError != nil {
				onError(err)
			}
			msg.Ack()
		}
	}
}
