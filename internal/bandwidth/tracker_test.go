// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package bandwidth

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

type fakeStatsClient struct {
	upstream.Client
	snapshots []upstream.ChannelStatsSnapshot
	call      int
}

func (f *fakeStatsClient) GetChannelStats(ctx context.Context) (*upstream.ChannelStatsSnapshot, error) {
	idx := f.call
	if idx >= len(f.snapshots) {
		idx = len(f.snapshots) - 1
	}
	f.call++
	snap := f.snapshots[idx]
	return &snap, nil
}

type fakeStore struct {
	mu       sync.Mutex
	daily    map[string]models.BandwidthDaily
	channels map[string]models.ChannelBandwidth
	conns    map[string]models.UniqueClientConnection
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		daily:    make(map[string]models.BandwidthDaily),
		channels: make(map[string]models.ChannelBandwidth),
		conns:    make(map[string]models.UniqueClientConnection),
	}
}

func dayKey(d time.Time) string { return d.Format("2006-01-02") }

func (s *fakeStore) GetBandwidthDaily(ctx context.Context, date time.Time) (models.BandwidthDaily, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.daily[dayKey(date)]; ok {
		return row, nil
	}
	return models.BandwidthDaily{Date: date}, nil
}

func (s *fakeStore) UpsertBandwidthDaily(ctx context.Context, row models.BandwidthDaily) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[dayKey(row.Date)] = row
	return nil
}

func channelKey(id int, date time.Time) string {
	return dayKey(date) + ":" + strconv.Itoa(id)
}

func (s *fakeStore) GetChannelBandwidth(ctx context.Context, channelID int, date time.Time) (models.ChannelBandwidth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.channels[channelKey(channelID, date)]; ok {
		return row, nil
	}
	return models.ChannelBandwidth{ChannelID: channelID, Date: date}, nil
}

func (s *fakeStore) UpsertChannelBandwidth(ctx context.Context, row models.ChannelBandwidth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channelKey(row.ChannelID, row.Date)] = row
	return nil
}

func (s *fakeStore) OpenConnections(ctx context.Context, channelID int) ([]models.UniqueClientConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UniqueClientConnection
	for _, c := range s.conns {
		if c.ChannelID == channelID && c.DisconnectedAt == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateConnection(ctx context.Context, conn models.UniqueClientConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn.ID] = conn
	return nil
}

func (s *fakeStore) UpdateConnectionWatchSeconds(ctx context.Context, id string, watchSeconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conns[id]
	c.WatchSeconds = watchSeconds
	s.conns[id] = c
	return nil
}

func (s *fakeStore) CloseConnection(ctx context.Context, id string, disconnectedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conns[id]
	c.DisconnectedAt = &disconnectedAt
	s.conns[id] = c
	return nil
}

func (s *fakeStore) PurgeBandwidthOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func entry(channelID int, totalBytes int64, ips ...string) upstream.ChannelStatEntry {
	clients := make([]upstream.ClientEntry, len(ips))
	for i, ip := range ips {
		clients[i] = upstream.ClientEntry{IPAddress: ip}
	}
	return upstream.ChannelStatEntry{
		ChannelID:   channelID,
		ChannelName: "c1",
		TotalBytes:  totalBytes,
		ClientCount: len(ips),
		Clients:     clients,
	}
}

func TestTracker_WatchCycleFromSpecExample(t *testing.T) {
	client := &fakeStatsClient{snapshots: []upstream.ChannelStatsSnapshot{
		{Channels: []upstream.ChannelStatEntry{entry(1, 1000, "A")}},
		{Channels: []upstream.ChannelStatEntry{entry(1, 3000, "A", "B")}},
		{Channels: []upstream.ChannelStatEntry{}},
	}}
	store := newFakeStore()
	tr := New(client, store, nil, Config{PollInterval: 10 * time.Second, Location: time.UTC})
	fixedNow := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixedNow }

	if err := tr.Poll(context.Background()); err != nil {
		t.Fatalf("sample 1: %v", err)
	}
	open, _ := store.OpenConnections(context.Background(), 1)
	if len(open) != 1 || open[0].IPAddress != "A" {
		t.Fatalf("after sample 1: expected one open connection for A, got %+v", open)
	}

	fixedNow = fixedNow.Add(10 * time.Second)
	if err := tr.Poll(context.Background()); err != nil {
		t.Fatalf("sample 2: %v", err)
	}
	cb, _ := store.GetChannelBandwidth(context.Background(), 1, truncateToDay(fixedNow, time.UTC))
	// 1000 bytes from sample 1 plus the 2000-byte delta of sample 2.
	if cb.BytesTransferred != 3000 {
		t.Errorf("BytesTransferred after sample 2 = %d, want 3000", cb.BytesTransferred)
	}
	open, _ = store.OpenConnections(context.Background(), 1)
	if len(open) != 2 {
		t.Fatalf("after sample 2: expected two open connections (A continuing, B new), got %+v", open)
	}
	for _, c := range open {
		if c.IPAddress == "A" && c.WatchSeconds != 10 {
			t.Errorf("A's watch_seconds after sample 2 = %d, want 10", c.WatchSeconds)
		}
		if c.IPAddress == "B" && c.WatchSeconds != 0 {
			t.Errorf("B's watch_seconds on the poll it connected = %d, want 0", c.WatchSeconds)
		}
	}

	fixedNow = fixedNow.Add(10 * time.Second)
	if err := tr.Poll(context.Background()); err != nil {
		t.Fatalf("sample 3: %v", err)
	}
	open, _ = store.OpenConnections(context.Background(), 1)
	if len(open) != 0 {
		t.Fatalf("after sample 3 (channel gone): expected no open connections, got %+v", open)
	}
}

func TestTracker_NegativeByteDeltaClampsToZero(t *testing.T) {
	client := &fakeStatsClient{snapshots: []upstream.ChannelStatsSnapshot{
		{Channels: []upstream.ChannelStatEntry{entry(1, 5000, "A")}},
		{Channels: []upstream.ChannelStatEntry{entry(1, 100, "A")}}, // counter reset
	}}
	store := newFakeStore()
	tr := New(client, store, nil, Config{PollInterval: 10 * time.Second, Location: time.UTC})

	if err := tr.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := tr.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	cb, _ := store.GetChannelBandwidth(context.Background(), 1, truncateToDay(tr.now(), time.UTC))
	if cb.BytesTransferred != 5000 {
		t.Errorf("BytesTransferred = %d, want 5000 (second delta clamped to 0)", cb.BytesTransferred)
	}
}

func TestTracker_DailyAccumulatesAcrossChannels(t *testing.T) {
	client := &fakeStatsClient{snapshots: []upstream.ChannelStatsSnapshot{
		{Channels: []upstream.ChannelStatEntry{entry(1, 1000, "A"), entry(2, 2000, "B", "C")}},
	}}
	store := newFakeStore()
	tr := New(client, store, nil, Config{PollInterval: 10 * time.Second, Location: time.UTC})

	if err := tr.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	daily, _ := store.GetBandwidthDaily(context.Background(), truncateToDay(tr.now(), time.UTC))
	if daily.BytesOut != 3000 {
		t.Errorf("BytesOut = %d, want 3000", daily.BytesOut)
	}
	if daily.PeakChannels != 2 {
		t.Errorf("PeakChannels = %d, want 2", daily.PeakChannels)
	}
	if daily.PeakClients != 3 {
		t.Errorf("PeakClients = %d, want 3", daily.PeakClients)
	}
}
