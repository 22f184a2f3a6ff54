// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"context"
	"testing"

	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

type pagingClient struct {
	fakeUpstreamClient
	pages [][]models.Stream
}

func (c *pagingClient) ListStreams(ctx context.Context, page, pageSize, providerID int) (*upstream.StreamPage, error) {
	if page < 1 || page > len(c.pages) {
		return &upstream.StreamPage{}, nil
	}
	results := c.pages[page-1]
	next := ""
	if page < len(c.pages) {
		next = "has-more"
	}
	return &upstream.StreamPage{Results: results, Next: next, Count: len(results)}, nil
}

func TestAllStreams_PagesUntilExhausted(t *testing.T) {
	client := &pagingClient{pages: [][]models.Stream{
		{{ID: 1}, {ID: 2}},
		{{ID: 3}},
	}}
	p, _ := newTestProber(&fakeRunner{}, nil)
	p.client = client

	got, err := p.allStreams(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 streams across both pages, got %d: %+v", len(got), got)
	}
}

func TestAllStreams_EmptyFirstPageReturnsNoStreams(t *testing.T) {
	client := &pagingClient{pages: [][]models.Stream{{}}}
	p, _ := newTestProber(&fakeRunner{}, nil)
	p.client = client

	got, err := p.allStreams(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no streams, got %v", got)
	}
}

func TestSweepContext_BuildsProviderPriorityAndStreamProviderMaps(t *testing.T) {
	p, _ := newTestProber(&fakeRunner{}, []models.Provider{{ID: 1, Priority: 5}, {ID: 2, Priority: 1}})

	streams := []models.Stream{{ID: 10, ProviderID: 1}, {ID: 11, ProviderID: 2}}
	providerPriority, streamProvider, channelIDs := p.sweepContext(context.Background(), streams)

	if providerPriority[1] != 5 || providerPriority[2] != 1 {
		t.Errorf("providerPriority = %v, want {1:5, 2:1}", providerPriority)
	}
	if streamProvider[10] != 1 || streamProvider[11] != 2 {
		t.Errorf("streamProvider = %v, want {10:1, 11:2}", streamProvider)
	}
	if channelIDs != nil {
		t.Errorf("expected sweepContext to leave channelIDs nil, got %v", channelIDs)
	}
}
