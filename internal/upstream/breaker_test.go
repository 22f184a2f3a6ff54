// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package upstream

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/dispatchctl/internal/models"
)

type fakeClient struct {
	Client
	getChannelErr error
	calls         int
}

func (f *fakeClient) GetChannel(ctx context.Context, id int) (*models.Channel, error) {
	f.calls++
	if f.getChannelErr != nil {
		return nil, f.getChannelErr
	}
	return &models.Channel{ID: id}, nil
}

func TestBreakerClientPassesThroughSuccess(t *testing.T) {
	fc := &fakeClient{}
	bc := NewBreakerClient(fc, "test-breaker-success")

	ch, err := bc.GetChannel(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.ID != 42 {
		t.Errorf("expected channel id 42, got %d", ch.ID)
	}
}

func TestBreakerClientOpensAfterSustainedFailures(t *testing.T) {
	fc := &fakeClient{getChannelErr: errors.New("boom")}
	bc := NewBreakerClient(fc, "test-breaker-open")

	for i := 0; i < 10; i++ {
		_, _ = bc.GetChannel(context.Background(), 1)
	}

	// The breaker should now be open; calls should be rejected rather than
	// forwarded to the underlying client once it trips.
	callsBeforeTrip := fc.calls
	_, err := bc.GetChannel(context.Background(), 1)
	if err == nil {
		t.Fatal("expected an error once breaker has a 100% failure rate over 10 requests")
	}
	if fc.calls > callsBeforeTrip+1 {
		t.Errorf("expected breaker to short-circuit instead of calling through every time")
	}
}
