// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"context"
	"sort"

	"github.com/tomtom215/dispatchctl/internal/models"
)

// SortKey is one column the auto-reorder comparator may rank by, in
// user-configured priority order (spec.md §4.4 "Auto-reorder after probe").
type SortKey string

const (
	SortByResolution    SortKey = "resolution_height"
	SortByBitrate       SortKey = "bitrate"
	SortByFPS           SortKey = "fps"
	SortByM3UPriority   SortKey = "m3u_priority"
	SortByAudioChannels SortKey = "audio_channels"
)

// ReorderConfig is the enabled keys, in priority order, plus the
// deprioritize-failed-streams leading tuple element.
type ReorderConfig struct {
	Keys                      []SortKey
	DeprioritizeFailedStreams bool
}

// streamSortContext bundles what the comparator needs about one stream: its
// cached measurement (if any) and its provider's configured priority.
type streamSortContext struct {
	streamID    int
	stats       *models.StreamStats
	m3uPriority int
}

func (c streamSortContext) failed() bool {
	if c.stats == nil {
		return true // never probed counts as pending, sorts with failed/timeout
	}
	switch c.stats.Status {
	case models.ProbeFailed, models.ProbeTimeout, models.ProbePending:
		return true
	default:
		return false
	}
}

// sortStreams stable-sorts ids by cfg's key list, each key descending, with
// an optional leading failed/pending-to-bottom tuple element.
func sortStreams(ids []int, byID map[int]streamSortContext, cfg ReorderConfig) []int {
	sorted := append([]int{}, ids...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := byID[sorted[i]], byID[sorted[j]]

		if cfg.DeprioritizeFailedStreams {
			af, bf := a.failed(), b.failed()
			if af != bf {
				return !af // non-failed sorts first
			}
		}

		for _, key := range cfg.Keys {
			av, bv := sortValue(a, key), sortValue(b, key)
			if av != bv {
				return av > bv // every key is descending per spec.md §4.4
			}
		}
		return false
	})
	return sorted
}

func sortValue(c streamSortContext, key SortKey) float64 {
	if c.stats == nil {
		return 0
	}
	switch key {
	case SortByResolution:
		return float64(c.stats.ResolutionHeight)
	case SortByBitrate:
		return float64(c.stats.BitrateKbps)
	case SortByFPS:
		return c.stats.FrameRate
	case SortByM3UPriority:
		return float64(c.m3uPriority)
	case SortByAudioChannels:
		return float64(c.stats.AudioChannels)
	default:
		return 0
	}
}

// StatsLookup resolves cached probe results for reorder/sort decisions —
// satisfied by the store's StatsStore in production and a fake in tests.
type StatsLookup interface {
	GetStats(ctx context.Context, streamID int) (*models.StreamStats, error)
}

// ReorderChannels walks every channel in channelIDs, fetches its full
// detail, and re-sorts its stream list per cfg, skipping the upstream call
// when the order already matches. It returns the ids of channels it
// actually changed.
func ReorderChannels(ctx context.Context, client channelDetailClient, stats StatsLookup, providerPriority map[int]int, streamProvider map[int]int, channelIDs []int, cfg ReorderConfig) ([]int, error) {
	var reordered []int
	for _, chID := range channelIDs {
		channel, err := client.GetChannel(ctx, chID)
		if err != nil {
			return reordered, err
		}
		if len(channel.Streams) < 2 {
			continue
		}

		byID := make(map[int]streamSortContext, len(channel.Streams))
		for _, sid := range channel.Streams {
			st, _ := stats.GetStats(ctx, sid)
			byID[sid] = streamSortContext{
				streamID:    sid,
				stats:       st,
				m3uPriority: providerPriority[streamProvider[sid]],
			}
		}

		sorted := sortStreams(channel.Streams, byID, cfg)
		if intSliceEqualLocal(sorted, channel.Streams) {
			continue
		}
		if _, err := client.UpdateChannel(ctx, chID, map[string]any{"streams": sorted}); err != nil {
			return reordered, err
		}
		reordered = append(reordered, chID)
	}
	return reordered, nil
}

// channelDetailClient is the subset of upstream.Client the reorder pass
// needs.
type channelDetailClient interface {
	GetChannel(ctx context.Context, id int) (*models.Channel, error)
	UpdateChannel(ctx context.Context, id int, data map[string]any) (*models.Channel, error)
}

func intSliceEqualLocal(a, b []int) bool {
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
