// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package store

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/dispatchctl/internal/models"
)

func TestBandwidthStoreDailyRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBandwidthStore(db)
	ctx := context.Background()
	day := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	empty, err := bs.GetBandwidthDaily(ctx, day)
	if err != nil {
		t.Fatalf("GetBandwidthDaily on empty: %v", err)
	}
	if empty.BytesTransferred != 0 {
		t.Fatalf("GetBandwidthDaily on empty = %+v, want zero row", empty)
	}

	row := models.BandwidthDaily{
		Date:             day,
		BytesTransferred: 1000,
		BytesIn:          400,
		BytesOut:         600,
		PeakChannels:     5,
		PeakClients:      12,
	}
	if err := bs.UpsertBandwidthDaily(ctx, row); err != nil {
		t.Fatalf("UpsertBandwidthDaily: %v", err)
	}

	got, err := bs.GetBandwidthDaily(ctx, day)
	if err != nil {
		t.Fatalf("GetBandwidthDaily: %v", err)
	}
	if got.BytesTransferred != 1000 || got.PeakClients != 12 {
		t.Fatalf("GetBandwidthDaily mismatch: %+v", got)
	}

	row.BytesTransferred = 2000
	if err := bs.UpsertBandwidthDaily(ctx, row); err != nil {
		t.Fatalf("UpsertBandwidthDaily update: %v", err)
	}
	got, err = bs.GetBandwidthDaily(ctx, day)
	if err != nil {
		t.Fatalf("GetBandwidthDaily after update: %v", err)
	}
	if got.BytesTransferred != 2000 {
		t.Fatalf("GetBandwidthDaily after update = %+v, want BytesTransferred=2000", got)
	}
}

func TestBandwidthStoreChannelBandwidthMirrorsWatchStats(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBandwidthStore(db)
	ctx := context.Background()
	day := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	row := models.ChannelBandwidth{
		ChannelID:         3,
		ChannelName:       "News HD",
		Date:              day,
		BytesTransferred:  5000,
		PeakClients:       2,
		TotalWatchSeconds: 1800,
		ConnectionCount:   4,
	}
	if err := bs.UpsertChannelBandwidth(ctx, row); err != nil {
		t.Fatalf("UpsertChannelBandwidth: %v", err)
	}

	got, err := bs.GetChannelBandwidth(ctx, 3, day)
	if err != nil {
		t.Fatalf("GetChannelBandwidth: %v", err)
	}
	if got.ChannelName != "News HD" || got.TotalWatchSeconds != 1800 {
		t.Fatalf("GetChannelBandwidth mismatch: %+v", got)
	}

	var watchSeconds int64
	err = db.conn.QueryRowContext(ctx,
		`SELECT total_watch_seconds FROM channel_watch_stats WHERE channel_id = ? AND date = ?`,
		3, dateKey(day)).Scan(&watchSeconds)
	if err != nil {
		t.Fatalf("query channel_watch_stats: %v", err)
	}
	if watchSeconds != 1800 {
		t.Fatalf("channel_watch_stats.total_watch_seconds = %d, want 1800", watchSeconds)
	}
}

func TestBandwidthStoreConnectionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBandwidthStore(db)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	conn := models.UniqueClientConnection{
		ID:          "conn-1",
		IPAddress:   "10.0.0.5",
		ChannelID:   9,
		ChannelName: "Sports 1",
		Date:        now,
		ConnectedAt: now,
	}
	if err := bs.CreateConnection(ctx, conn); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}

	open, err := bs.OpenConnections(ctx, 9)
	if err != nil {
		t.Fatalf("OpenConnections: %v", err)
	}
	if len(open) != 1 || open[0].ID != "conn-1" {
		t.Fatalf("OpenConnections mismatch: %+v", open)
	}

	if err := bs.UpdateConnectionWatchSeconds(ctx, "conn-1", 120); err != nil {
		t.Fatalf("UpdateConnectionWatchSeconds: %v", err)
	}
	if err := bs.CloseConnection(ctx, "conn-1", now.Add(2*time.Minute)); err != nil {
		t.Fatalf("CloseConnection: %v", err)
	}

	open, err = bs.OpenConnections(ctx, 9)
	if err != nil {
		t.Fatalf("OpenConnections after close: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("OpenConnections after close = %+v, want none", open)
	}
}

func TestBandwidthStorePurgeOlderThan(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBandwidthStore(db)
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, day := range []time.Time{old, recent} {
		if err := bs.UpsertBandwidthDaily(ctx, models.BandwidthDaily{Date: day, BytesTransferred: 100}); err != nil {
			t.Fatalf("UpsertBandwidthDaily %v: %v", day, err)
		}
	}

	removed, err := bs.PurgeBandwidthOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("PurgeBandwidthOlderThan: %v", err)
	}
	if removed != 1 {
		t.Fatalf("PurgeBandwidthOlderThan removed = %d, want 1", removed)
	}

	gotOld, err := bs.GetBandwidthDaily(ctx, old)
	if err != nil {
		t.Fatalf("GetBandwidthDaily old: %v", err)
	}
	if gotOld.BytesTransferred != 0 {
		t.Fatalf("old row still present: %+v", gotOld)
	}

	gotRecent, err := bs.GetBandwidthDaily(ctx, recent)
	if err != nil {
		t.Fatalf("GetBandwidthDaily recent: %v", err)
	}
	if gotRecent.BytesTransferred != 100 {
		t.Fatalf("recent row was purged: %+v", gotRecent)
	}
}
