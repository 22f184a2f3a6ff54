// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/metrics"
	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/notify"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

// StatsStore is the subset of the stats persistence layer the prober needs:
// read cached results for reorder decisions, write every probe outcome.
type StatsStore interface {
	StatsLookup
	SaveStats(ctx context.Context, stats models.StreamStats) error
}

// probeRunner is the subset of *Runner the dispatch loop depends on, narrowed
// so tests can substitute a fake instead of shelling out to ffprobe.
type probeRunner interface {
	Probe(ctx context.Context, streamURL string) (models.StreamStats, error)
}

// Config is the StreamProber's tunable policy, sourced from
// internal/config's Prober section.
type Config struct {
	MaxConcurrentProbes int // clamped 1-16
	ProbeRetryCount      int // clamped 0-5
	ProbeRetryDelay      time.Duration
	Distribution         DistributionStrategy
	Reorder              ReorderConfig
	ConfigDir            string
	Runner               RunnerConfig
	SweepInterval        time.Duration // Serve's full-catalog sweep cadence

	// InterProbeSpacing paces dispatch beneath the ramp-up limiter with a
	// token bucket, smoothing bursts of probes hitting the same provider
	// the instant ramp-room opens up. Zero disables pacing.
	InterProbeSpacing time.Duration
}

func (c Config) clampedConcurrency() int64 {
	n := c.MaxConcurrentProbes
	if n < 1 {
		n = 1
	}
	if n > 16 {
		n = 16
	}
	return int64(n)
}

func (c Config) clampedRetryCount() int {
	n := c.ProbeRetryCount
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return n
}

// Progress is the live counter set the prober exposes for notifications and
// introspection (spec.md §4.4 "Progress & notifications").
type Progress struct {
	Total               int
	Current             int
	SuccessCount        int
	FailedCount         int
	SkippedCount        int
	CurrentStream       string
	Status              string // "running", "completed", "warning", "cancelled"
	RateLimited         bool
	RateLimitedHosts    []string
	MaxBackoffRemaining time.Duration
}

// StreamProber runs probe-on-sort single-stream measurements and full
// catalog sweeps under per-account ramp-up control, profile-aware
// concurrency, and a bounded global semaphore.
type StreamProber struct {
	client  upstream.Client
	stats   StatsStore
	sink    notify.Sink
	history *History
	runner  probeRunner
	cfg     Config

	sem     *semaphore.Weighted
	ramp    *rampController
	limiter *rate.Limiter

	mu           sync.Mutex
	selectors    map[int]*profileSelector // provider id -> selector, reset per run
	progress     Progress
	paused       atomic.Bool
	cancelled    atomic.Bool
	lastNotifyAt time.Time
}

// New builds a StreamProber. sink may be nil — progress notifications are
// then skipped entirely, which is fine for probe-on-sort's single-stream
// use (engine.Prober never needs them).
func New(client upstream.Client, stats StatsStore, sink notify.Sink, cfg Config) *StreamProber {
	limit := rate.Inf
	if cfg.InterProbeSpacing > 0 {
		limit = rate.Every(cfg.InterProbeSpacing)
	}
	return &StreamProber{
		client:    client,
		stats:     stats,
		sink:      sink,
		history:   NewHistory(cfg.ConfigDir),
		runner:    NewRunner(cfg.Runner),
		cfg:       cfg,
		sem:       semaphore.NewWeighted(cfg.clampedConcurrency()),
		ramp:      newRampController(time.Now),
		limiter:   rate.NewLimiter(limit, 1),
		selectors: make(map[int]*profileSelector),
	}
}

// Probe measures one stream, honoring its provider's ramp state and profile
// capacity. It satisfies engine.Prober for the pipeline's probe-on-sort
// pass, which supplies its own outer concurrency bound (spec.md §5: "a
// semaphore of 3 concurrent probes").
func (p *StreamProber) Probe(ctx context.Context, stream models.Stream) (models.StreamStats, error) {
	provider, err := p.providerFor(ctx, stream.ProviderID)
	if err != nil {
		return models.StreamStats{}, err
	}
	ctx = logging.ContextWithProviderID(ctx, provider.ID)
	selector := p.selectorFor(provider.ID)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return models.StreamStats{}, err
	}
	defer p.sem.Release(1)

	if err := p.waitForRoom(ctx, provider.ID); err != nil {
		return models.StreamStats{}, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return models.StreamStats{}, err
	}
	p.ramp.reserve(provider.ID)
	success, cls := false, ClassPermanent
	defer func() { p.ramp.release(provider.ID, provider.MaxStreams, success, cls) }()

	metrics.ProberActiveProbes.Inc()
	defer metrics.ProberActiveProbes.Dec()

	profile, ok := selector.Select(provider.Profiles, stream.URL)
	var probeURL string
	if ok {
		selector.reserve(profile)
		defer selector.release(profile)
		probeURL = rewriteURL(profile, stream.URL)
	} else {
		probeURL = stream.URL
	}

	stats, resultCls, err := p.probeWithRetry(ctx, stream, probeURL)
	success, cls = err == nil, resultCls

	if saveErr := p.stats.SaveStats(ctx, stats); saveErr != nil {
		logging.Ctx(ctx).Warn().Err(saveErr).Int("stream_id", stream.ID).Msg("failed to persist probe stats")
	}
	return stats, err
}

// probeWithRetry runs one probe attempt, retrying transient failures per
// the configured policy (spec.md §4.4 "Retry policy").
func (p *StreamProber) probeWithRetry(ctx context.Context, stream models.Stream, url string) (models.StreamStats, Classification, error) {
	var lastErr error
	var lastCls Classification = ClassPermanent

	attempts := p.cfg.clampedRetryCount() + 1
	for attempt := 0; attempt < attempts; attempt++ {
		start := time.Now()
		stats, err := p.runner.Probe(ctx, url)
		stats.StreamID = stream.ID
		stats.ProviderID = stream.ProviderID
		stats.LastProbedAt = start

		if err == nil {
			now := time.Now()
			stats.LastSuccessAt = &now
			stats.ConsecutiveFails = 0
			metrics.ProberProbesTotal.WithLabelValues("success").Inc()
			metrics.ProberProbeDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
			if msg, expectedGB, flagged := bandwidthSanityCheck(stats); flagged {
				logging.Ctx(ctx).Warn().Int("stream_id", stream.ID).Int("bitrate_kbps", stats.BitrateKbps).
					Int("resolution_height", stats.ResolutionHeight).Float64("expected_gb_per_hour", expectedGB).
					Msg(msg)
			}
			return stats, "", nil
		}

		var pe *ProbeError
		cls := ClassPermanent
		if asProbeError(err, &pe) {
			cls = pe.Classification
		}
		lastErr = err
		lastCls = cls

		status := models.ProbeFailed
		if cls == ClassTimeout {
			status = models.ProbeTimeout
		}
		stats.Status = status
		stats.LastError = err.Error()
		stats.ConsecutiveFails++
		metrics.ProberProbesTotal.WithLabelValues(string(status)).Inc()
		metrics.ProberProbeDuration.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())

		if !retryable(cls) || attempt == attempts-1 {
			return stats, cls, err
		}
		if err := p.sleepOrDone(ctx, p.cfg.ProbeRetryDelay); err != nil {
			return stats, cls, err
		}
	}
	return models.StreamStats{StreamID: stream.ID, ProviderID: stream.ProviderID, Status: models.ProbeFailed, LastError: lastErr.Error()}, lastCls, lastErr
}

func asProbeError(err error, target **ProbeError) bool {
	if pe, ok := err.(*ProbeError); ok {
		*target = pe
		return true
	}
	return false
}

func (p *StreamProber) sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitForRoom polls until provider has ramp-room, or ctx/pause/cancel stops
// it. This is the cooperative equivalent of spec.md §4.4's "scan pending
// streams and dispatch any that have ramp-room" loop, pushed down to the
// per-stream call site instead of a single shared scheduler goroutine.
func (p *StreamProber) waitForRoom(ctx context.Context, providerID int) error {
	const pollInterval = 100 * time.Millisecond
	for {
		if p.cancelled.Load() {
			return context.Canceled
		}
		if !p.paused.Load() && p.ramp.canDispatch(providerID) {
			return nil
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *StreamProber) providerFor(ctx context.Context, providerID int) (models.Provider, error) {
	providers, err := p.client.ListProviders(ctx)
	if err != nil {
		return models.Provider{}, fmt.Errorf("prober: list providers: %w", err)
	}
	for _, pr := range providers {
		if pr.ID == providerID {
			return pr, nil
		}
	}
	return models.Provider{ID: providerID, MaxStreams: 1}, nil
}

func (p *StreamProber) selectorFor(providerID int) *profileSelector {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.selectors[providerID]
	if !ok {
		s = newProfileSelector(p.cfg.Distribution)
		p.selectors[providerID] = s
	}
	return s
}

// Cancel stops the dispatch loop from launching new probes and unblocks
// every waiting probe with context.Canceled.
func (p *StreamProber) Cancel() { p.cancelled.Store(true) }

// Pause suspends new dispatch without cancelling in-flight or already
// queued work.
func (p *StreamProber) Pause() { p.paused.Store(true) }

// Resume clears a prior Pause.
func (p *StreamProber) Resume() { p.paused.Store(false) }

// SnapshotProgress returns a copy of the live progress counters.
func (p *StreamProber) SnapshotProgress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}
