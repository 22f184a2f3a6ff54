// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/dispatchctl/internal/metrics"
)

// Severity is one of the notification types the spec's dispatch contract
// allows.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is one item to create or update through a Sink.
type Notification struct {
	ID       string
	Type     Severity
	Title    string
	Message  string
	Source   string // e.g. "prober", "engine", "bandwidth"
	SourceID string
	Metadata map[string]any
}

// Sink is the outbound notification dispatch contract of spec.md §6: create,
// update, and bulk-delete-by-source. A sink implementation owns delivery
// (webhook POST, Discord embed, …); this package only specifies the
// contract and rate-limits calls to it.
type Sink interface {
	Name() string
	Create(ctx context.Context, n Notification) (string, error)
	Update(ctx context.Context, id string, n Notification) error
	DeleteBySource(ctx context.Context, source string) (int, error)
}

// RateLimitedDispatcher wraps a Sink with a per-sink minimum interval
// between calls, dropping (not queuing) calls that arrive too soon — the
// same policy the prober's own progress notifications need ("updated at
// most every 5s or every 10 streams"), generalized here so every caller
// gets it for free instead of re-implementing the throttle.
type RateLimitedDispatcher struct {
	sink     Sink
	minGap   time.Duration
	mu       sync.Mutex
	lastSent time.Time
}

// NewRateLimitedDispatcher wraps sink with a minGap throttle. minGap <= 0
// disables rate limiting.
func NewRateLimitedDispatcher(sink Sink, minGap time.Duration) *RateLimitedDispatcher {
	return &RateLimitedDispatcher{sink: sink, minGap: minGap}
}

func (d *RateLimitedDispatcher) allow() bool {
	if d.minGap <= 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if time.Since(d.lastSent) < d.minGap {
		return false
	}
	d.lastSent = time.Now()
	return true
}

// Create dispatches a new notification, or silently drops it if the sink
// was called too recently.
func (d *RateLimitedDispatcher) Create(ctx context.Context, n Notification) (string, error) {
	if !d.allow() {
		metrics.NotificationsRateLimited.WithLabelValues(d.sink.Name()).Inc()
		return "", nil
	}
	id, err := d.sink.Create(ctx, n)
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	metrics.NotificationsSentTotal.WithLabelValues(d.sink.Name(), outcome).Inc()
	return id, err
}

// Update is never rate-limited by itself — it always targets an
// already-created notification, so dropping it would leave the
// notification stuck at a stale state.
func (d *RateLimitedDispatcher) Update(ctx context.Context, id string, n Notification) error {
	err := d.sink.Update(ctx, id, n)
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	metrics.NotificationsSentTotal.WithLabelValues(d.sink.Name(), outcome).Inc()
	return err
}

// DeleteBySource removes every notification the sink attributes to source
// (used when a cancelled probe run needs to retract its progress
// notification).
func (d *RateLimitedDispatcher) DeleteBySource(ctx context.Context, source string) (int, error) {
	return d.sink.DeleteBySource(ctx, source)
}

var _ Sink = (*RateLimitedDispatcher)(nil)
