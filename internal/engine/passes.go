// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/dispatchctl/internal/executor"
	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/models"
)

// loadSnapshot pages through every channel, group, and stream the upstream
// currently holds. The pipeline operates on this one consistent snapshot
// for the whole run — it never re-fetches mid-run, so an upstream change
// concurrent with a run is picked up on the next run, not this one.
func (e *Engine) loadSnapshot(ctx context.Context) ([]models.Channel, []models.Group, []models.Stream, map[int]int, error) {
	var channels []models.Channel
	for page := 1; ; page++ {
		cp, err := e.client.ListChannels(ctx, page, e.pageSize, "", "")
		if err != nil {
			return nil, nil, nil, nil, err
		}
		channels = append(channels, cp.Results...)
		if len(cp.Results) == 0 || len(channels) >= cp.Count {
			break
		}
	}

	groups, err := e.client.ListChannelGroups(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var streams []models.Stream
	for page := 1; ; page++ {
		sp, err := e.client.ListStreams(ctx, page, e.pageSize, 0)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		streams = append(streams, sp.Results...)
		if len(sp.Results) == 0 || len(streams) >= sp.Count {
			break
		}
	}

	streamProviderByID := make(map[int]int, len(streams))
	for _, s := range streams {
		streamProviderByID[s.ID] = s.ProviderID
	}

	return channels, groups, streams, streamProviderByID, nil
}

// probeForSort measures the streams that a quality-sorted,
// probe_on_sort-enabled rule matched but which have no cached resolution
// yet, bounded by e.probeConcurrency concurrent probes.
func (e *Engine) probeForSort(ctx context.Context, groupedByRule map[int]*ruleMatch) {
	type target struct {
		ruleID int
		idx    int
	}
	var targets []target
	for ruleID, grp := range groupedByRule {
		if grp.rule.SortField != "quality" || !grp.rule.ProbeOnSort {
			continue
		}
		for i, s := range grp.streams {
			if s.ResolutionHeight == 0 {
				targets = append(targets, target{ruleID, i})
			}
		}
	}
	if len(targets) == 0 {
		return
	}

	sem := make(chan struct{}, e.probeConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, t := range targets {
		t := t
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			mu.Lock()
			stream := groupedByRule[t.ruleID].streams[t.idx]
			mu.Unlock()
			stats, err := e.prober.Probe(ctx, stream)
			if err != nil {
				logging.Warn().Err(err).Int("stream_id", stream.ID).Msg("probe-on-sort failed")
				return
			}
			mu.Lock()
			groupedByRule[t.ruleID].streams[t.idx].ResolutionHeight = stats.ResolutionHeight
			mu.Unlock()
		}()
	}
	wg.Wait()
}

// orderedChannelIDs returns the distinct channel ids, in the order their
// streams appear in the already-sorted streams slice, that each stream
// belongs to after Pass 2. It looks each stream's channel up through
// ax.ChannelForStream and skips streams that have none.
func orderedChannelIDs(streams []models.Stream, ax *executor.ActionExecutor) []int {
	seen := map[int]bool{}
	var ids []int
	for _, s := range streams {
		ch := ax.ChannelForStream(s)
		if ch == nil || seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		ids = append(ids, ch.ID)
	}
	return ids
}

func lowestChannelNumber(ids []int, channels []models.Channel) float64 {
	byID := make(map[int]models.Channel, len(channels))
	for _, c := range channels {
		byID[c.ID] = c
	}
	min := 0.0
	for i, id := range ids {
		if c, ok := byID[id]; ok && c.ChannelNumber > 0 {
			if i == 0 || c.ChannelNumber < min {
				min = c.ChannelNumber
			}
		}
	}
	if min == 0 {
		return 1
	}
	return min
}

// reorderChannelStreams re-sorts a channel's stream list by resolution
// height per the rule's sort order, skipping the upstream call entirely
// when the order is already correct (spec.md §4.3 Pass 3.5).
func (e *Engine) reorderChannelStreams(ctx context.Context, channelID int, channels []models.Channel, streamByID map[int]models.Stream, order models.SortOrder) {
	var channel *models.Channel
	for i := range channels {
		if channels[i].ID == channelID {
			channel = &channels[i]
			break
		}
	}
	if channel == nil || len(channel.Streams) < 2 {
		return
	}

	sorted := append([]int{}, channel.Streams...)
	sort.SliceStable(sorted, func(i, j int) bool {
		hi, hj := streamByID[sorted[i]].ResolutionHeight, streamByID[sorted[j]].ResolutionHeight
		if order == models.SortDescending {
			return hi > hj
		}
		return hi < hj
	})

	if intSliceEqual(sorted, channel.Streams) {
		return
	}
	if _, err := e.client.UpdateChannel(ctx, channelID, map[string]any{"streams": sorted}); err != nil {
		logging.Warn().Err(err).Int("channel_id", channelID).Msg("pass 3.5 stream reorder failed")
		return
	}
	channel.Streams = sorted
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
