// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/dispatchctl/internal/models"
)

// StatsStore persists one StreamStats row per stream, satisfying both
// internal/prober.StatsStore (probe results) and internal/prober.StatsLookup
// (the engine's cached-result read path), plus the Dismiss/Undismiss
// operations recovered from original_source/stream_checker.py.
type StatsStore struct {
	db *DB
}

func NewStatsStore(db *DB) *StatsStore { return &StatsStore{db: db} }

const statsSelectColumns = `SELECT stream_id, provider_id, status, video_codec, audio_codec,
	resolution_width, resolution_height, bitrate_kbps, measured_mbps, frame_rate, audio_channels,
	consecutive_fails, last_error, last_probed_at, last_success_at, dismissed, dismissed_at,
	dismissed_by, dismissed_reason`

func scanStats(row rowScanner) (models.StreamStats, error) {
	var s models.StreamStats
	var lastSuccessAt, dismissedAt sql.NullTime

	if err := row.Scan(&s.StreamID, &s.ProviderID, &s.Status, &s.VideoCodec, &s.AudioCodec,
		&s.ResolutionWidth, &s.ResolutionHeight, &s.BitrateKbps, &s.MeasuredMbps, &s.FrameRate,
		&s.AudioChannels, &s.ConsecutiveFails, &s.LastError, &s.LastProbedAt, &lastSuccessAt,
		&s.Dismissed, &dismissedAt, &s.DismissedBy, &s.DismissedReason); err != nil {
		return models.StreamStats{}, err
	}
	if lastSuccessAt.Valid {
		t := lastSuccessAt.Time
		s.LastSuccessAt = &t
	}
	if dismissedAt.Valid {
		t := dismissedAt.Time
		s.DismissedAt = &t
	}
	return s, nil
}

// GetStats returns the stats row for one stream, or nil if none has ever
// been recorded — internal/prober/reorder.go treats a nil result as a
// never-probed stream and sorts it with the failed ones.
func (s *StatsStore) GetStats(ctx context.Context, streamID int) (*models.StreamStats, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	row := s.db.conn.QueryRowContext(ctx, statsSelectColumns+` FROM stream_stats WHERE stream_id = ?`, streamID)
	stats, err := scanStats(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get stats for stream %d: %w", streamID, err)
	}
	return &stats, nil
}

// SaveStats inserts or replaces the stats row for one stream. A stream has
// at most one row, keyed by stream_id.
func (s *StatsStore) SaveStats(ctx context.Context, stats models.StreamStats) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO stream_stats (stream_id, provider_id, status, video_codec, audio_codec,
			resolution_width, resolution_height, bitrate_kbps, measured_mbps, frame_rate, audio_channels,
			consecutive_fails, last_error, last_probed_at, last_success_at, dismissed, dismissed_at,
			dismissed_by, dismissed_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stream_id) DO UPDATE SET
			provider_id=excluded.provider_id, status=excluded.status, video_codec=excluded.video_codec,
			audio_codec=excluded.audio_codec, resolution_width=excluded.resolution_width,
			resolution_height=excluded.resolution_height, bitrate_kbps=excluded.bitrate_kbps,
			measured_mbps=excluded.measured_mbps, frame_rate=excluded.frame_rate,
			audio_channels=excluded.audio_channels, consecutive_fails=excluded.consecutive_fails,
			last_error=excluded.last_error, last_probed_at=excluded.last_probed_at,
			last_success_at=excluded.last_success_at, dismissed=excluded.dismissed,
			dismissed_at=excluded.dismissed_at, dismissed_by=excluded.dismissed_by,
			dismissed_reason=excluded.dismissed_reason`,
		stats.StreamID, stats.ProviderID, stats.Status, stats.VideoCodec, stats.AudioCodec,
		stats.ResolutionWidth, stats.ResolutionHeight, stats.BitrateKbps, stats.MeasuredMbps,
		stats.FrameRate, stats.AudioChannels, stats.ConsecutiveFails, stats.LastError,
		stats.LastProbedAt, stats.LastSuccessAt, stats.Dismissed, stats.DismissedAt,
		stats.DismissedBy, stats.DismissedReason)
	if err != nil {
		return fmt.Errorf("store: save stats for stream %d: %w", stats.StreamID, err)
	}
	return nil
}

// ListDismissed returns every stream currently dismissed, for an operator
// listing endpoint.
func (s *StatsStore) ListDismissed(ctx context.Context) ([]models.StreamStats, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	rows, err := s.db.conn.QueryContext(ctx, statsSelectColumns+` FROM stream_stats WHERE dismissed = 1 ORDER BY dismissed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list dismissed stats: %w", err)
	}
	defer rows.Close()

	var out []models.StreamStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Dismiss marks an existing stream's stats row dismissed without erasing
// its history; the row is then listed by ListDismissed. The prober and the
// engine do not read the flag, so a dismissed stream is still probed and
// still sorted on. It errors with ErrNotFound if the stream has never been
// probed — there is nothing to dismiss yet.
func (s *StatsStore) Dismiss(ctx context.Context, streamID int, by, reason string, at time.Time) error {
	existing, err := s.GetStats(ctx, streamID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	existing.Dismiss(by, reason, at)
	return s.SaveStats(ctx, *existing)
}

// Undismiss clears a prior Dismiss, removing the row from ListDismissed.
func (s *StatsStore) Undismiss(ctx context.Context, streamID int) error {
	existing, err := s.GetStats(ctx, streamID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	existing.Undismiss()
	return s.SaveStats(ctx, *existing)
}
