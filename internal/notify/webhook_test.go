// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestWebhookSink_Create_Success(t *testing.T) {
	var receivedPayload webhookPayload
	var requestCount int32
	var receivedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		receivedHeaders = r.Header.Clone()
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&receivedPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookConfig{
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer test-token"},
	})

	id, err := sink.Create(context.Background(), Notification{
		Type:    SeverityInfo,
		Title:   "probe run started",
		Message: "probing 12 streams",
		Source:  "prober",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected a non-empty notification id")
	}
	if atomic.LoadInt32(&requestCount) != 1 {
		t.Errorf("expected 1 request, got %d", requestCount)
	}
	if receivedHeaders.Get("Authorization") != "Bearer test-token" {
		t.Errorf("Authorization header = %q, want %q", receivedHeaders.Get("Authorization"), "Bearer test-token")
	}
	if receivedPayload.Event != "notification.create" {
		t.Errorf("Event = %q, want %q", receivedPayload.Event, "notification.create")
	}
	if receivedPayload.Notification == nil || receivedPayload.Notification.Title != "probe run started" {
		t.Error("expected the posted notification to round-trip")
	}
}

func TestWebhookSink_Create_NoURLIsNoop(t *testing.T) {
	sink := NewWebhookSink(WebhookConfig{})

	id, err := sink.Create(context.Background(), Notification{Source: "prober", Title: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected an id even when the webhook is unconfigured")
	}
}

func TestWebhookSink_Create_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookConfig{URL: server.URL})

	_, err := sink.Create(context.Background(), Notification{Source: "prober", Title: "x"})
	if err == nil {
		t.Error("expected an error for a 502 response")
	}
}

func TestWebhookSink_DeleteBySource(t *testing.T) {
	var events []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhookPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		events = append(events, p.Event)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookConfig{URL: server.URL})
	ctx := context.Background()

	if _, err := sink.Create(ctx, Notification{Source: "prober:run-1", Title: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sink.Create(ctx, Notification{Source: "prober:run-1", Title: "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	removed, err := sink.DeleteBySource(ctx, "prober:run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	removedAgain, err := sink.DeleteBySource(ctx, "prober:run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removedAgain != 0 {
		t.Errorf("second DeleteBySource should be a no-op, got removed = %d", removedAgain)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 webhook calls, got %d", len(events))
	}
	if events[2] != "notification.delete_by_source" {
		t.Errorf("final event = %q, want notification.delete_by_source", events[2])
	}
}

func TestWebhookSink_Update(t *testing.T) {
	var receivedID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhookPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		receivedID = p.NotificationID
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewWebhookSink(WebhookConfig{URL: server.URL})
	if err := sink.Update(context.Background(), "abc-123", Notification{Title: "updated"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receivedID != "abc-123" {
		t.Errorf("NotificationID = %q, want %q", receivedID, "abc-123")
	}
}
