// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"context"
	"testing"

	"github.com/tomtom215/dispatchctl/internal/models"
)

func TestSortStreams_ByResolutionDescending(t *testing.T) {
	byID := map[int]streamSortContext{
		1: {streamID: 1, stats: &models.StreamStats{ResolutionHeight: 480, Status: models.ProbeOK}},
		2: {streamID: 2, stats: &models.StreamStats{ResolutionHeight: 1080, Status: models.ProbeOK}},
		3: {streamID: 3, stats: &models.StreamStats{ResolutionHeight: 720, Status: models.ProbeOK}},
	}
	cfg := ReorderConfig{Keys: []SortKey{SortByResolution}}

	got := sortStreams([]int{1, 2, 3}, byID, cfg)
	want := []int{2, 3, 1}
	if !intSliceEqualLocal(got, want) {
		t.Errorf("sortStreams = %v, want %v", got, want)
	}
}

func TestSortStreams_DeprioritizesFailedStreams(t *testing.T) {
	byID := map[int]streamSortContext{
		1: {streamID: 1, stats: &models.StreamStats{ResolutionHeight: 1080, Status: models.ProbeFailed}},
		2: {streamID: 2, stats: &models.StreamStats{ResolutionHeight: 480, Status: models.ProbeOK}},
	}
	cfg := ReorderConfig{Keys: []SortKey{SortByResolution}, DeprioritizeFailedStreams: true}

	got := sortStreams([]int{1, 2}, byID, cfg)
	want := []int{2, 1}
	if !intSliceEqualLocal(got, want) {
		t.Errorf("sortStreams = %v, want %v (failed stream pushed to bottom despite higher resolution)", got, want)
	}
}

func TestSortStreams_MultiKeyTiebreak(t *testing.T) {
	byID := map[int]streamSortContext{
		1: {streamID: 1, stats: &models.StreamStats{ResolutionHeight: 1080, BitrateKbps: 4000, Status: models.ProbeOK}},
		2: {streamID: 2, stats: &models.StreamStats{ResolutionHeight: 1080, BitrateKbps: 8000, Status: models.ProbeOK}},
	}
	cfg := ReorderConfig{Keys: []SortKey{SortByResolution, SortByBitrate}}

	got := sortStreams([]int{1, 2}, byID, cfg)
	want := []int{2, 1}
	if !intSliceEqualLocal(got, want) {
		t.Errorf("sortStreams = %v, want %v (bitrate breaks the resolution tie)", got, want)
	}
}

type fakeChannelClient struct {
	channels map[int]*models.Channel
	updated  map[int][]int
}

func (f *fakeChannelClient) GetChannel(ctx context.Context, id int) (*models.Channel, error) {
	return f.channels[id], nil
}

func (f *fakeChannelClient) UpdateChannel(ctx context.Context, id int, data map[string]any) (*models.Channel, error) {
	streams := data["streams"].([]int)
	if f.updated == nil {
		f.updated = make(map[int][]int)
	}
	f.updated[id] = streams
	f.channels[id].Streams = streams
	return f.channels[id], nil
}

type fakeStatsLookup struct {
	byID map[int]*models.StreamStats
}

func (f *fakeStatsLookup) GetStats(ctx context.Context, streamID int) (*models.StreamStats, error) {
	return f.byID[streamID], nil
}

func TestReorderChannels_SkipsWhenAlreadySorted(t *testing.T) {
	channels := map[int]*models.Channel{
		10: {ID: 10, Streams: []int{1, 2}},
	}
	stats := &fakeStatsLookup{byID: map[int]*models.StreamStats{
		1: {ResolutionHeight: 1080, Status: models.ProbeOK},
		2: {ResolutionHeight: 480, Status: models.ProbeOK},
	}}
	client := &fakeChannelClient{channels: channels}

	reordered, err := ReorderChannels(context.Background(), client, stats, nil, nil, []int{10}, ReorderConfig{Keys: []SortKey{SortByResolution}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reordered) != 0 {
		t.Errorf("expected no channels reordered when already sorted, got %v", reordered)
	}
}

func TestReorderChannels_UpdatesOutOfOrderChannel(t *testing.T) {
	channels := map[int]*models.Channel{
		10: {ID: 10, Streams: []int{1, 2}},
	}
	stats := &fakeStatsLookup{byID: map[int]*models.StreamStats{
		1: {ResolutionHeight: 480, Status: models.ProbeOK},
		2: {ResolutionHeight: 1080, Status: models.ProbeOK},
	}}
	client := &fakeChannelClient{channels: channels}

	reordered, err := ReorderChannels(context.Background(), client, stats, nil, nil, []int{10}, ReorderConfig{Keys: []SortKey{SortByResolution}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reordered) != 1 || reordered[0] != 10 {
		t.Fatalf("expected channel 10 to be reordered, got %v", reordered)
	}
	if !intSliceEqualLocal(client.updated[10], []int{2, 1}) {
		t.Errorf("updated streams = %v, want [2 1]", client.updated[10])
	}
}
