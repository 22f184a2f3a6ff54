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

// dateKey is the TEXT primary-key format every bandwidth table uses —
// truncated to the day, independent of time-of-day or location offset
// within that day.
const dateKeyLayout = "2006-01-02"

func dateKey(t time.Time) string { return t.Format(dateKeyLayout) }

// BandwidthStore implements internal/bandwidth.Store against the
// bandwidth_daily/channel_bandwidth/channel_watch_stats/unique_client_connections
// tables.
type BandwidthStore struct {
	db *DB
}

func NewBandwidthStore(db *DB) *BandwidthStore { return &BandwidthStore{db: db} }

// GetBandwidthDaily returns the row for date, or a zero-value row (Date set,
// everything else zero) if the tracker hasn't written to this day yet.
func (s *BandwidthStore) GetBandwidthDaily(ctx context.Context, date time.Time) (models.BandwidthDaily, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	row := s.db.conn.QueryRowContext(ctx, `
		SELECT bytes_transferred, bytes_in, bytes_out, peak_channels, peak_clients, peak_bitrate_in, peak_bitrate_out
		FROM bandwidth_daily WHERE date = ?`, dateKey(date))

	var out models.BandwidthDaily
	out.Date = date.Truncate(24 * time.Hour)
	err := row.Scan(&out.BytesTransferred, &out.BytesIn, &out.BytesOut, &out.PeakChannels,
		&out.PeakClients, &out.PeakBitrateIn, &out.PeakBitrateOut)
	if err == sql.ErrNoRows {
		return out, nil
	}
	if err != nil {
		return models.BandwidthDaily{}, fmt.Errorf("store: get bandwidth daily %s: %w", dateKey(date), err)
	}
	return out, nil
}

// UpsertBandwidthDaily writes the aggregate row for row.Date, replacing any
// existing row for that day wholesale — the tracker always recomputes the
// full day's totals before calling this.
func (s *BandwidthStore) UpsertBandwidthDaily(ctx context.Context, row models.BandwidthDaily) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO bandwidth_daily (date, bytes_transferred, bytes_in, bytes_out, peak_channels, peak_clients,
			peak_bitrate_in, peak_bitrate_out)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			bytes_transferred=excluded.bytes_transferred, bytes_in=excluded.bytes_in,
			bytes_out=excluded.bytes_out, peak_channels=excluded.peak_channels,
			peak_clients=excluded.peak_clients, peak_bitrate_in=excluded.peak_bitrate_in,
			peak_bitrate_out=excluded.peak_bitrate_out`,
		dateKey(row.Date), row.BytesTransferred, row.BytesIn, row.BytesOut, row.PeakChannels,
		row.PeakClients, row.PeakBitrateIn, row.PeakBitrateOut)
	if err != nil {
		return fmt.Errorf("store: upsert bandwidth daily %s: %w", dateKey(row.Date), err)
	}
	return nil
}

// GetChannelBandwidth returns one channel's row for date, or a zero-value
// row if the tracker hasn't written to it yet.
func (s *BandwidthStore) GetChannelBandwidth(ctx context.Context, channelID int, date time.Time) (models.ChannelBandwidth, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	row := s.db.conn.QueryRowContext(ctx, `
		SELECT channel_name, bytes_transferred, peak_clients, total_watch_seconds, connection_count
		FROM channel_bandwidth WHERE channel_id = ? AND date = ?`, channelID, dateKey(date))

	out := models.ChannelBandwidth{ChannelID: channelID, Date: date.Truncate(24 * time.Hour)}
	err := row.Scan(&out.ChannelName, &out.BytesTransferred, &out.PeakClients, &out.TotalWatchSeconds, &out.ConnectionCount)
	if err == sql.ErrNoRows {
		return out, nil
	}
	if err != nil {
		return models.ChannelBandwidth{}, fmt.Errorf("store: get channel bandwidth %d/%s: %w", channelID, dateKey(date), err)
	}
	return out, nil
}

// UpsertChannelBandwidth writes row to channel_bandwidth and mirrors its
// watch-seconds total into channel_watch_stats, which spec.md §6 names
// separately from channel_bandwidth as persisted state.
func (s *BandwidthStore) UpsertChannelBandwidth(ctx context.Context, row models.ChannelBandwidth) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin channel bandwidth tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	key := dateKey(row.Date)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO channel_bandwidth (channel_id, date, channel_name, bytes_transferred, peak_clients,
			total_watch_seconds, connection_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id, date) DO UPDATE SET
			channel_name=excluded.channel_name, bytes_transferred=excluded.bytes_transferred,
			peak_clients=excluded.peak_clients, total_watch_seconds=excluded.total_watch_seconds,
			connection_count=excluded.connection_count`,
		row.ChannelID, key, row.ChannelName, row.BytesTransferred, row.PeakClients,
		row.TotalWatchSeconds, row.ConnectionCount); err != nil {
		return fmt.Errorf("store: upsert channel bandwidth %d/%s: %w", row.ChannelID, key, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO channel_watch_stats (channel_id, date, total_watch_seconds)
		VALUES (?, ?, ?)
		ON CONFLICT(channel_id, date) DO UPDATE SET total_watch_seconds=excluded.total_watch_seconds`,
		row.ChannelID, key, row.TotalWatchSeconds); err != nil {
		return fmt.Errorf("store: upsert channel watch stats %d/%s: %w", row.ChannelID, key, err)
	}

	return tx.Commit()
}

// OpenConnections returns every connection for channelID still missing a
// DisconnectedAt.
func (s *BandwidthStore) OpenConnections(ctx context.Context, channelID int) ([]models.UniqueClientConnection, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, ip_address, channel_id, channel_name, date, connected_at, disconnected_at, watch_seconds
		FROM unique_client_connections WHERE channel_id = ? AND disconnected_at IS NULL`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: list open connections for channel %d: %w", channelID, err)
	}
	defer rows.Close()

	var out []models.UniqueClientConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConnection(row rowScanner) (models.UniqueClientConnection, error) {
	var c models.UniqueClientConnection
	var date string
	var disconnectedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.IPAddress, &c.ChannelID, &c.ChannelName, &date, &c.ConnectedAt,
		&disconnectedAt, &c.WatchSeconds); err != nil {
		return models.UniqueClientConnection{}, err
	}
	parsed, err := time.Parse(dateKeyLayout, date)
	if err != nil {
		return models.UniqueClientConnection{}, fmt.Errorf("store: parse connection date %q: %w", date, err)
	}
	c.Date = parsed
	if disconnectedAt.Valid {
		t := disconnectedAt.Time
		c.DisconnectedAt = &t
	}
	return c, nil
}

// CreateConnection records a newly-opened viewing session.
func (s *BandwidthStore) CreateConnection(ctx context.Context, conn models.UniqueClientConnection) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO unique_client_connections (id, ip_address, channel_id, channel_name, date, connected_at,
			disconnected_at, watch_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conn.ID, conn.IPAddress, conn.ChannelID, conn.ChannelName, dateKey(conn.Date), conn.ConnectedAt,
		conn.DisconnectedAt, conn.WatchSeconds)
	if err != nil {
		return fmt.Errorf("store: create connection %s: %w", conn.ID, err)
	}
	return nil
}

// UpdateConnectionWatchSeconds refreshes the running watch-seconds total for
// a still-open connection.
func (s *BandwidthStore) UpdateConnectionWatchSeconds(ctx context.Context, id string, watchSeconds int64) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	_, err := s.db.conn.ExecContext(ctx, `UPDATE unique_client_connections SET watch_seconds = ? WHERE id = ?`, watchSeconds, id)
	if err != nil {
		return fmt.Errorf("store: update connection watch seconds %s: %w", id, err)
	}
	return nil
}

// CloseConnection marks a connection's end time, final watch-seconds total
// already having been written by UpdateConnectionWatchSeconds.
func (s *BandwidthStore) CloseConnection(ctx context.Context, id string, disconnectedAt time.Time) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	_, err := s.db.conn.ExecContext(ctx, `UPDATE unique_client_connections SET disconnected_at = ? WHERE id = ?`, disconnectedAt, id)
	if err != nil {
		return fmt.Errorf("store: close connection %s: %w", id, err)
	}
	return nil
}

// PurgeBandwidthOlderThan deletes BandwidthDaily, ChannelBandwidth,
// channel_watch_stats, and closed connections dated before cutoff, and
// returns the number of BandwidthDaily rows removed.
func (s *BandwidthStore) PurgeBandwidthOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	key := dateKey(cutoff)

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM bandwidth_daily WHERE date < ?`, key)
	if err != nil {
		return 0, fmt.Errorf("store: purge bandwidth_daily: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: purge bandwidth_daily rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_bandwidth WHERE date < ?`, key); err != nil {
		return 0, fmt.Errorf("store: purge channel_bandwidth: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_watch_stats WHERE date < ?`, key); err != nil {
		return 0, fmt.Errorf("store: purge channel_watch_stats: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM unique_client_connections WHERE date < ? AND disconnected_at IS NOT NULL`, key); err != nil {
		return 0, fmt.Errorf("store: purge unique_client_connections: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit purge tx: %w", err)
	}
	return int(removed), nil
}
