// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewHTTPClient(HTTPClientConfig{BaseURL: srv.URL, Token: "test-token", Timeout: 5 * time.Second})
	return c, srv
}

func TestGetChannelSuccess(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":5,"name":"ESPN","channel_number":101.0,"tvg_id":"espn.us"}`))
	})

	ch, err := c.GetChannel(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.ID != 5 || ch.Name != "ESPN" || ch.TVGID != "espn.us" {
		t.Errorf("unexpected channel: %+v", ch)
	}
}

func TestDeleteChannelNotFoundIsIdempotent(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if err := c.DeleteChannel(context.Background(), 99); err != nil {
		t.Fatalf("expected nil error on 404 delete (idempotence), got %v", err)
	}
}

func TestDeleteChannelGroupNotFoundIsIdempotent(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if err := c.DeleteChannelGroup(context.Background(), 99); err != nil {
		t.Fatalf("expected nil error on 404 delete (idempotence), got %v", err)
	}
}

func TestCreateLogoRecoversFromConflict(t *testing.T) {
	calls := 0
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch {
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusConflict)
		case r.Method == http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"id":7,"url":"http://logos/espn.png"}]`))
		}
	})

	logo, err := c.CreateLogo(context.Background(), "http://logos/espn.png", "ESPN")
	if err != nil {
		t.Fatalf("expected conflict recovery to succeed, got %v", err)
	}
	if logo.ID != 7 {
		t.Errorf("expected recovered logo id 7, got %d", logo.ID)
	}
	if calls != 2 {
		t.Errorf("expected create then find-by-url (2 calls), got %d", calls)
	}
}

func TestRateLimitRetriesWithBackoff(t *testing.T) {
	attempts := 0
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"name":"ok"}`))
	})
	c.retryBaseDelay = time.Millisecond

	ch, err := c.GetChannel(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if ch.Name != "ok" {
		t.Errorf("unexpected channel: %+v", ch)
	}
}

func TestListChannelsPagination(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("expected page=2, got %q", r.URL.Query().Get("page"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count":3,"next":"","results":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}`))
	})

	page, err := c.ListChannels(context.Background(), 2, 2, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Count != 3 || len(page.Results) != 2 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestGetChannelStatsMapsClients(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"channels":[{"channel_id":1,"channel_name":"A","total_bytes":1000,"client_count":2,"clients":[{"ip_address":"1.1.1.1"},{"ip_address":"2.2.2.2"}]}]}`))
	})

	snap, err := c.GetChannelStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Channels) != 1 || len(snap.Channels[0].Clients) != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}
