// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"context"
	"time"

	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/models"
)

const defaultSweepInterval = time.Hour

// Serve runs the StreamProber as a long-lived suture.Service: a scheduled
// full-catalog sweep every cfg.SweepInterval, grounded on the same
// ticker-driven Start/run pattern the teacher's newsletter scheduler uses.
// It satisfies supervisor.AddWorkerService's suture.Service contract.
func (p *StreamProber) Serve(ctx context.Context) error {
	interval := p.cfg.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	logging.Info().Dur("interval", interval).Msg("starting stream prober sweep loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.sweepOnce(ctx)
		}
	}
}

func (p *StreamProber) sweepOnce(ctx context.Context) {
	ctx = logging.ContextWithNewRunID(ctx)

	streams, err := p.allStreams(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("stream prober: failed to list streams for sweep")
		return
	}
	if len(streams) == 0 {
		return
	}

	providerPriority, streamProvider, channelIDs := p.sweepContext(ctx, streams)

	logging.Ctx(ctx).Info().Int("streams", len(streams)).Msg("stream prober: starting sweep")
	if _, err := p.Run(ctx, streams, channelIDs, providerPriority, streamProvider); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("stream prober: sweep run failed")
	}
}

// sweepContext builds the provider-priority map and per-stream provider
// lookup a full sweep's reorder pass needs. Channel ids are left empty here
// — a scheduled sweep has no rule-scoped "target group set" (spec.md
// §4.4's auto-reorder is defined against the pipeline's group targets);
// callers that need reorder after a scheduled sweep should drive it from
// the engine instead, passing the groups the triggering rules touched.
func (p *StreamProber) sweepContext(ctx context.Context, streams []models.Stream) (map[int]int, map[int]int, []int) {
	providerPriority := make(map[int]int)
	streamProvider := make(map[int]int, len(streams))
	providers, err := p.client.ListProviders(ctx)
	if err == nil {
		for _, pr := range providers {
			providerPriority[pr.ID] = pr.Priority
		}
	}
	for _, s := range streams {
		streamProvider[s.ID] = s.ProviderID
	}
	return providerPriority, streamProvider, nil
}

// allStreams pages through list_streams until exhausted.
func (p *StreamProber) allStreams(ctx context.Context) ([]models.Stream, error) {
	const pageSize = 200
	var all []models.Stream
	for page := 1; ; page++ {
		batch, err := p.client.ListStreams(ctx, page, pageSize, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, batch.Results...)
		if batch.Next == "" || len(batch.Results) == 0 {
			break
		}
	}
	return all, nil
}
