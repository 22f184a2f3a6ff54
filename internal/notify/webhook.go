// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// WebhookConfig configures a generic outbound webhook sink.
type WebhookConfig struct {
	URL     string            `koanf:"url"`
	Headers map[string]string `koanf:"headers"`
	Timeout time.Duration     `koanf:"timeout"`
}

// webhookPayload is the JSON body posted for every create/update/delete
// call, shaped after the teacher's detection webhook notifier payload.
type webhookPayload struct {
	Event        string         `json:"event"` // notification.create | notification.update | notification.delete_by_source
	Notification *Notification  `json:"notification,omitempty"`
	NotificationID string       `json:"notification_id,omitempty"`
	Source       string         `json:"source,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// WebhookSink posts every notification lifecycle event to a single
// configured URL. It tracks which ids it has created locally (the generic
// webhook contract has no id-lookup endpoint of its own) so DeleteBySource
// knows which ids to report as removed.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client

	mu        sync.Mutex
	bySource  map[string][]string // source -> notification ids created under it
}

// NewWebhookSink builds a WebhookSink. An empty URL makes every call a no-op
// success, matching the teacher's WebhookNotifier.Enabled() gate.
func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
		bySource: make(map[string][]string),
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) Create(ctx context.Context, n Notification) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if err := w.post(ctx, webhookPayload{Event: "notification.create", Notification: &n, Timestamp: time.Now()}); err != nil {
		return "", err
	}
	w.mu.Lock()
	w.bySource[n.Source] = append(w.bySource[n.Source], n.ID)
	w.mu.Unlock()
	return n.ID, nil
}

func (w *WebhookSink) Update(ctx context.Context, id string, n Notification) error {
	n.ID = id
	return w.post(ctx, webhookPayload{Event: "notification.update", Notification: &n, NotificationID: id, Timestamp: time.Now()})
}

func (w *WebhookSink) DeleteBySource(ctx context.Context, source string) (int, error) {
	w.mu.Lock()
	ids := w.bySource[source]
	delete(w.bySource, source)
	w.mu.Unlock()

	if len(ids) == 0 {
		return 0, nil
	}
	if err := w.post(ctx, webhookPayload{Event: "notification.delete_by_source", Source: source, Timestamp: time.Now()}); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (w *WebhookSink) post(ctx context.Context, payload webhookPayload) error {
	if w.cfg.URL == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Sink = (*WebhookSink)(nil)
