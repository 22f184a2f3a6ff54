// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"context"
	"sync"
	"testing"

	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/notify"
)

type fakeNotifySink struct {
	mu       sync.Mutex
	created  int
	updated  int
	deleted  int
	lastNote notify.Notification
}

func (f *fakeNotifySink) Name() string { return "fake" }

func (f *fakeNotifySink) Create(ctx context.Context, n notify.Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	f.lastNote = n
	return "notif-1", nil
}

func (f *fakeNotifySink) Update(ctx context.Context, id string, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated++
	f.lastNote = n
	return nil
}

func (f *fakeNotifySink) DeleteBySource(ctx context.Context, source string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted++
	return 1, nil
}

func TestRun_AllSuccessNotifiesCompletedAndAppendsHistory(t *testing.T) {
	runner := &fakeRunner{results: []fakeRunnerResult{
		{stats: models.StreamStats{Status: models.ProbeOK}},
	}}
	p, _ := newTestProber(runner, []models.Provider{{ID: 1, MaxStreams: 5}})
	sink := &fakeNotifySink{}
	p.sink = sink
	p.cfg.ConfigDir = t.TempDir()
	p.history = NewHistory(p.cfg.ConfigDir)

	streams := []models.Stream{
		{ID: 1, ProviderID: 1, URL: "http://x/1"},
		{ID: 2, ProviderID: 1, URL: "http://x/2"},
	}

	rec, err := p.Run(context.Background(), streams, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != "completed" {
		t.Errorf("Status = %q, want completed", rec.Status)
	}
	if rec.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", rec.SuccessCount)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.created != 1 {
		t.Errorf("expected exactly one start notification, got %d", sink.created)
	}
	if sink.updated == 0 {
		t.Error("expected at least one progress/finish update notification")
	}

	recent, err := p.history.Recent()
	if err != nil {
		t.Fatalf("history.Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(recent))
	}
}

func TestRun_CancelledBeforeDispatchSkipsRemainingStreams(t *testing.T) {
	runner := &fakeRunner{results: []fakeRunnerResult{{stats: models.StreamStats{Status: models.ProbeOK}}}}
	p, _ := newTestProber(runner, []models.Provider{{ID: 1, MaxStreams: 5}})
	p.cfg.ConfigDir = t.TempDir()
	p.history = NewHistory(p.cfg.ConfigDir)
	p.Cancel()

	streams := []models.Stream{{ID: 1, ProviderID: 1, URL: "http://x/1"}}
	rec, err := p.Run(context.Background(), streams, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != "cancelled" {
		t.Errorf("Status = %q, want cancelled", rec.Status)
	}
	if rec.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", rec.SkippedCount)
	}
}

func TestRun_ReordersChannelsWhenConfigured(t *testing.T) {
	runner := &fakeRunner{byURL: map[string]fakeRunnerResult{
		"http://x/1": {stats: models.StreamStats{ResolutionHeight: 480, Status: models.ProbeOK}},
		"http://x/2": {stats: models.StreamStats{ResolutionHeight: 1080, Status: models.ProbeOK}},
	}}
	p, _ := newTestProber(runner, []models.Provider{{ID: 1, MaxStreams: 5}})
	p.cfg.ConfigDir = t.TempDir()
	p.history = NewHistory(p.cfg.ConfigDir)
	p.cfg.Reorder = ReorderConfig{Keys: []SortKey{SortByResolution}}

	channels := map[int]*models.Channel{10: {ID: 10, Streams: []int{1, 2}}}
	client := &fakeChannelClient{channels: channels}
	p.client = &reorderCapableClient{fakeUpstreamClient: fakeUpstreamClient{providers: []models.Provider{{ID: 1, MaxStreams: 5}}}, channels: client}

	streams := []models.Stream{
		{ID: 1, ProviderID: 1, URL: "http://x/1"},
		{ID: 2, ProviderID: 1, URL: "http://x/2"},
	}

	rec, err := p.Run(context.Background(), streams, []int{10}, map[int]int{1: 0}, map[int]int{1: 1, 2: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.ReorderedChannels) != 1 || rec.ReorderedChannels[0] != 10 {
		t.Errorf("ReorderedChannels = %v, want [10]", rec.ReorderedChannels)
	}
}

// reorderCapableClient layers GetChannel/UpdateChannel on top of
// fakeUpstreamClient so Run's post-sweep reorder pass has something to call.
type reorderCapableClient struct {
	fakeUpstreamClient
	channels *fakeChannelClient
}

func (r *reorderCapableClient) GetChannel(ctx context.Context, id int) (*models.Channel, error) {
	return r.channels.GetChannel(ctx, id)
}

func (r *reorderCapableClient) UpdateChannel(ctx context.Context, id int, data map[string]any) (*models.Channel, error) {
	return r.channels.UpdateChannel(ctx, id, data)
}
