// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package bandwidth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/dispatchctl/internal/journal"
	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/metrics"
	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultRetentionDays  = 90
)

// Config is the BandwidthTracker's tunable policy, sourced from
// internal/config's Bandwidth section.
type Config struct {
	PollInterval  time.Duration
	RetentionDays int
	Location      *time.Location // defaults to time.Local
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return defaultPollInterval
	}
	return c.PollInterval
}

func (c Config) retentionDays() int {
	if c.RetentionDays <= 0 {
		return defaultRetentionDays
	}
	return c.RetentionDays
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// channelState is the tracker's in-memory bookkeeping for one currently (or
// most recently) active channel. It is deliberately not persisted: a
// restart just means the next sample computes its byte delta against zero,
// producing one oversized delta rather than losing data (spec.md §5,
// "a dropped sample just creates a larger delta next time").
type channelState struct {
	lastTotalBytes int64
	clientIPs      map[string]struct{}
}

// Tracker polls the upstream's live channel-stats endpoint on a fixed
// cadence and derives bandwidth and watch-session aggregates from the
// cumulative counters it reports (spec.md §4.5).
type Tracker struct {
	client    upstream.Client
	store     Store
	publisher *journal.Publisher
	cfg       Config
	now       func() time.Time

	mu            sync.Mutex
	channels      map[int]*channelState
	lastPurgeDate time.Time
}

// New builds a Tracker. publisher may be nil — watch events are then
// dropped instead of published, which is harmless for callers that only
// care about the aggregate tables.
func New(client upstream.Client, store Store, publisher *journal.Publisher, cfg Config) *Tracker {
	return &Tracker{
		client:    client,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		channels:  make(map[int]*channelState),
	}
}

// Serve runs the poll loop until ctx is cancelled, satisfying
// supervisor.AddWorkerService's suture.Service contract. Grounded on the
// same ticker-driven Start/run shape internal/prober.Serve uses, itself
// adapted from the teacher's newsletter scheduler.
func (t *Tracker) Serve(ctx context.Context) error {
	interval := t.cfg.pollInterval()
	logging.Info().Dur("interval", interval).Msg("starting bandwidth tracker poll loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.Poll(ctx); err != nil {
				logging.Warn().Err(err).Msg("bandwidth tracker: poll failed")
			}
		}
	}
}

// Poll runs exactly one sample-and-apply cycle. Polls are strictly
// sequential: t.mu serializes them and Serve's loop never overlaps two
// Polls. A sample is not applied atomically: the store writes are separate
// calls with no transaction around them, so when one fails Poll returns the
// error and the writes (and in-memory channel state updates) made earlier
// in the same sample stay in place.
func (t *Tracker) Poll(ctx context.Context) error {
	ctx = logging.ContextWithNewRunID(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot, err := t.client.GetChannelStats(ctx)
	if err != nil {
		metrics.BandwidthPollsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("bandwidth: get channel stats: %w", err)
	}

	now := t.now()
	today := truncateToDay(now, t.cfg.location())
	pollSeconds := int64(t.cfg.pollInterval().Seconds())

	current := make(map[int]upstream.ChannelStatEntry, len(snapshot.Channels))
	for _, ch := range snapshot.Channels {
		current[ch.ChannelID] = ch
	}

	if err := t.applyDisappearedChannels(ctx, current, now); err != nil {
		metrics.BandwidthPollsTotal.WithLabelValues("error").Inc()
		return err
	}

	daily, err := t.store.GetBandwidthDaily(ctx, today)
	if err != nil {
		metrics.BandwidthPollsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("bandwidth: get daily: %w", err)
	}
	daily.Date = today

	totalClients := 0
	var sampleBytesIn, sampleBytesOut int64

	for _, ch := range snapshot.Channels {
		st, appearing := t.channels[ch.ChannelID]
		if !appearing {
			st = &channelState{clientIPs: make(map[string]struct{})}
			t.channels[ch.ChannelID] = st
			if err := t.emitWatchStart(ctx, ch, now, today); err != nil {
				return err
			}
		}

		delta := ch.TotalBytes - st.lastTotalBytes
		if delta < 0 {
			delta = 0
		}
		st.lastTotalBytes = ch.TotalBytes

		clientCount := ch.ClientCount
		if clientCount < 1 {
			clientCount = 1
		}
		outDelta := delta
		inDelta := delta / int64(clientCount)
		sampleBytesOut += outDelta
		sampleBytesIn += inDelta
		totalClients += len(ch.Clients)

		if err := t.applyChannelConnections(ctx, ch, st, now, today, pollSeconds); err != nil {
			return err
		}

		cb, err := t.store.GetChannelBandwidth(ctx, ch.ChannelID, today)
		if err != nil {
			metrics.BandwidthPollsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("bandwidth: get channel bandwidth: %w", err)
		}
		cb.ChannelID = ch.ChannelID
		cb.ChannelName = ch.ChannelName
		cb.Date = today
		cb.BytesTransferred += outDelta
		if len(ch.Clients) > cb.PeakClients {
			cb.PeakClients = len(ch.Clients)
		}
		cb.TotalWatchSeconds += pollSeconds * int64(len(ch.Clients))
		if err := t.store.UpsertChannelBandwidth(ctx, cb); err != nil {
			metrics.BandwidthPollsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("bandwidth: upsert channel bandwidth: %w", err)
		}
		metrics.BandwidthBytesTotal.WithLabelValues(ch.ChannelName).Add(float64(outDelta))
	}

	daily.BytesIn += sampleBytesIn
	daily.BytesOut += sampleBytesOut
	daily.BytesTransferred = daily.BytesIn + daily.BytesOut
	if len(current) > daily.PeakChannels {
		daily.PeakChannels = len(current)
	}
	if totalClients > daily.PeakClients {
		daily.PeakClients = totalClients
	}
	if kbps := bitrateKbps(sampleBytesIn, t.cfg.pollInterval()); kbps > daily.PeakBitrateIn {
		daily.PeakBitrateIn = kbps
	}
	if kbps := bitrateKbps(sampleBytesOut, t.cfg.pollInterval()); kbps > daily.PeakBitrateOut {
		daily.PeakBitrateOut = kbps
	}
	if err := t.store.UpsertBandwidthDaily(ctx, daily); err != nil {
		metrics.BandwidthPollsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("bandwidth: upsert daily: %w", err)
	}

	metrics.BandwidthActiveClients.Set(float64(totalClients))
	metrics.BandwidthPollsTotal.WithLabelValues("success").Inc()

	if !sameDay(t.lastPurgeDate, today) {
		t.lastPurgeDate = today
		if n, err := t.store.PurgeBandwidthOlderThan(ctx, today.AddDate(0, 0, -t.cfg.retentionDays())); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("bandwidth tracker: retention purge failed")
		} else if n > 0 {
			logging.Ctx(ctx).Info().Int("rows", n).Msg("bandwidth tracker: purged aged-out retention rows")
		}
	}

	for id := range t.channels {
		if _, stillActive := current[id]; !stillActive {
			delete(t.channels, id)
		}
	}
	return nil
}

// applyDisappearedChannels closes out every channel that was active last
// poll but is absent this poll: emits watch:stop and marks every open
// connection disconnected.
func (t *Tracker) applyDisappearedChannels(ctx context.Context, current map[int]upstream.ChannelStatEntry, now time.Time) error {
	for id, st := range t.channels {
		if _, ok := current[id]; ok {
			continue
		}
		open, err := t.store.OpenConnections(ctx, id)
		if err != nil {
			return fmt.Errorf("bandwidth: open connections for channel %d: %w", id, err)
		}
		for _, conn := range open {
			if err := t.store.CloseConnection(ctx, conn.ID, now); err != nil {
				return fmt.Errorf("bandwidth: close connection %s: %w", conn.ID, err)
			}
		}
		t.publish(journal.EventWatchStop, map[string]any{
			"channel_id": id,
			"ip_count":   len(st.clientIPs),
		})
		metrics.BandwidthWatchEventsTotal.WithLabelValues("stop").Inc()
	}
	return nil
}

func (t *Tracker) emitWatchStart(ctx context.Context, ch upstream.ChannelStatEntry, now, today time.Time) error {
	ips := make([]string, 0, len(ch.Clients))
	for _, c := range ch.Clients {
		ips = append(ips, c.IPAddress)
	}
	t.publish(journal.EventWatchStart, map[string]any{
		"channel_id": ch.ChannelID,
		"ips":        ips,
	})
	metrics.BandwidthWatchEventsTotal.WithLabelValues("start").Inc()
	return nil
}

// applyChannelConnections diffs ch's current client IP set against st's
// remembered set: new IPs get a connection row, continuing IPs accrue
// watch_seconds, departing IPs are closed.
func (t *Tracker) applyChannelConnections(ctx context.Context, ch upstream.ChannelStatEntry, st *channelState, now, today time.Time, pollSeconds int64) error {
	seen := make(map[string]struct{}, len(ch.Clients))
	justConnected := make(map[string]struct{})
	for _, c := range ch.Clients {
		seen[c.IPAddress] = struct{}{}
		if _, existed := st.clientIPs[c.IPAddress]; existed {
			continue
		}
		justConnected[c.IPAddress] = struct{}{}
		conn := models.UniqueClientConnection{
			ID:          uuid.NewString(),
			IPAddress:   c.IPAddress,
			ChannelID:   ch.ChannelID,
			ChannelName: ch.ChannelName,
			Date:        today,
			ConnectedAt: now,
		}
		if err := t.store.CreateConnection(ctx, conn); err != nil {
			return fmt.Errorf("bandwidth: create connection: %w", err)
		}
		cb, err := t.store.GetChannelBandwidth(ctx, ch.ChannelID, today)
		if err == nil {
			cb.ChannelID = ch.ChannelID
			cb.ChannelName = ch.ChannelName
			cb.Date = today
			cb.ConnectionCount++
			_ = t.store.UpsertChannelBandwidth(ctx, cb)
		}
	}

	open, err := t.store.OpenConnections(ctx, ch.ChannelID)
	if err != nil {
		return fmt.Errorf("bandwidth: open connections for channel %d: %w", ch.ChannelID, err)
	}
	for _, conn := range open {
		if _, stillThere := seen[conn.IPAddress]; !stillThere {
			if err := t.store.CloseConnection(ctx, conn.ID, now); err != nil {
				return fmt.Errorf("bandwidth: close connection %s: %w", conn.ID, err)
			}
			continue
		}
		if _, fresh := justConnected[conn.IPAddress]; fresh {
			continue
		}
		if err := t.store.UpdateConnectionWatchSeconds(ctx, conn.ID, conn.WatchSeconds+pollSeconds); err != nil {
			return fmt.Errorf("bandwidth: update watch seconds %s: %w", conn.ID, err)
		}
	}

	st.clientIPs = seen
	return nil
}

func (t *Tracker) publish(eventType journal.EventType, payload map[string]any) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(journal.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: t.now(),
		Payload:    payload,
	}); err != nil {
		logging.Warn().Err(err).Str("event_type", string(eventType)).Msg("bandwidth tracker: failed to publish event")
	}
}

func truncateToDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func bitrateKbps(bytes int64, window time.Duration) int {
	if window <= 0 {
		return 0
	}
	return int((float64(bytes) * 8) / 1000 / window.Seconds())
}
