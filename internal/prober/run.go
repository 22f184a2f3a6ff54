// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/notify"
)

const (
	notifyMinInterval     = 5 * time.Second
	notifyEveryNStreams   = 10
	probeSourceName       = "prober"
)

// Run probes every stream in streams to completion — a full catalog sweep.
// It resets per-account ramp state, dispatches through the same
// semaphore/ramp/profile machinery Probe uses, reports live progress via
// the notification sink, reorders channels on completion when configured,
// and appends a record to history.
func (p *StreamProber) Run(ctx context.Context, streams []models.Stream, channelIDs []int, providerPriority map[int]int, streamProvider map[int]int) (RunRecord, error) {
	start := time.Now()
	// A Cancel issued before Run cancels this run; the flag clears when Run returns.
	defer p.cancelled.Store(false)
	p.paused.Store(false)

	p.ramp.mu.Lock()
	p.ramp.accounts = make(map[int]*accountState)
	p.ramp.mu.Unlock()

	p.mu.Lock()
	p.selectors = make(map[int]*profileSelector)
	p.progress = Progress{Total: len(streams), Status: "running"}
	p.lastNotifyAt = time.Time{}
	p.mu.Unlock()

	notifID := p.notifyStart(ctx, len(streams))

	var (
		mu                                     sync.Mutex
		successStreams, failedStreams, skipped []int
		streamsSinceNotify                     int
	)

	var wg sync.WaitGroup
	for _, stream := range streams {
		if p.cancelled.Load() {
			mu.Lock()
			skipped = append(skipped, stream.ID)
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(s models.Stream) {
			defer wg.Done()
			stats, err := p.Probe(ctx, s)

			mu.Lock()
			defer mu.Unlock()
			p.mu.Lock()
			p.progress.Current++
			p.progress.CurrentStream = s.Name
			if err == nil {
				p.progress.SuccessCount++
				successStreams = append(successStreams, s.ID)
			} else if ctxCancelled(err) {
				p.progress.SkippedCount++
				skipped = append(skipped, s.ID)
			} else {
				p.progress.FailedCount++
				failedStreams = append(failedStreams, s.ID)
			}
			streamsSinceNotify++
			shouldNotify := streamsSinceNotify >= notifyEveryNStreams || time.Since(p.lastNotifyAt) >= notifyMinInterval
			progressCopy := p.progress
			p.mu.Unlock()

			if shouldNotify {
				streamsSinceNotify = 0
				p.lastNotifyAt = time.Now()
				p.notifyProgress(ctx, notifID, progressCopy)
			}
			_ = stats
		}(stream)
	}
	wg.Wait()

	var reordered []int
	if len(p.cfg.Reorder.Keys) > 0 && len(channelIDs) > 0 && !p.cancelled.Load() {
		var err error
		reordered, err = ReorderChannels(ctx, p.client, p.stats, providerPriority, streamProvider, channelIDs, p.cfg.Reorder)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("post-probe channel reorder failed")
		}
	}

	status := "completed"
	if p.cancelled.Load() {
		status = "cancelled"
	} else if len(failedStreams) > 0 {
		status = "warning"
	}

	p.mu.Lock()
	p.progress.Status = status
	p.mu.Unlock()

	p.notifyFinish(ctx, notifID, status, len(failedStreams))

	rec := RunRecord{
		StartedAt:         start,
		DurationSeconds:   time.Since(start).Seconds(),
		Total:             len(streams),
		SuccessCount:      len(successStreams),
		FailedCount:       len(failedStreams),
		SkippedCount:      len(skipped),
		Status:            status,
		SuccessStreams:    successStreams,
		FailedStreams:     failedStreams,
		SkippedStreams:    skipped,
		ReorderedChannels: reordered,
		SortConfig:        fmt.Sprintf("%v", p.cfg.Reorder.Keys),
	}
	if err := p.history.Append(rec); err != nil {
		logging.Warn().Err(err).Msg("failed to append probe history")
	}
	return rec, nil
}

func ctxCancelled(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded
}

func (p *StreamProber) notifyStart(ctx context.Context, total int) string {
	if p.sink == nil {
		return ""
	}
	id, err := p.sink.Create(ctx, notify.Notification{
		Type:    notify.SeverityInfo,
		Title:   "probe run started",
		Message: fmt.Sprintf("probing %d streams", total),
		Source:  probeSourceName,
	})
	if err != nil {
		logging.Warn().Err(err).Msg("failed to create probe start notification")
	}
	return id
}

func (p *StreamProber) notifyProgress(ctx context.Context, id string, progress Progress) {
	if p.sink == nil || id == "" {
		return
	}
	if err := p.sink.Update(ctx, id, notify.Notification{
		Type:    notify.SeverityInfo,
		Title:   "probe run in progress",
		Message: fmt.Sprintf("%d/%d (%d ok, %d failed)", progress.Current, progress.Total, progress.SuccessCount, progress.FailedCount),
		Source:  probeSourceName,
	}); err != nil {
		logging.Warn().Err(err).Msg("failed to update probe progress notification")
	}
}

func (p *StreamProber) notifyFinish(ctx context.Context, id string, status string, failedCount int) {
	if p.sink == nil || id == "" {
		return
	}
	sev := notify.SeveritySuccess
	if failedCount > 0 {
		sev = notify.SeverityWarning
	}
	if status == "cancelled" {
		if _, err := p.sink.DeleteBySource(ctx, probeSourceName); err != nil {
			logging.Warn().Err(err).Msg("failed to delete cancelled probe notification")
		}
		return
	}
	if err := p.sink.Update(ctx, id, notify.Notification{
		Type:    sev,
		Title:   "probe run finished",
		Message: fmt.Sprintf("status=%s failed=%d", status, failedCount),
		Source:  probeSourceName,
	}); err != nil {
		logging.Warn().Err(err).Msg("failed to finalize probe notification")
	}
}
