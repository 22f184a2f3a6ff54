// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dispatchctl/internal/models"
)

// maxErrorBodySize caps how much of an error response body is read back
// for diagnostics.
const maxErrorBodySize = 64 * 1024

// HTTPClient is the production Client implementation: a thin REST wrapper
// around the upstream's HTTP API with bearer-token auth and automatic
// exponential backoff on HTTP 429.
type HTTPClient struct {
	baseURL        string
	token          string
	httpClient     *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// NewHTTPClient builds an HTTPClient from config, applying the same
// resilience defaults used across dispatchctl's outbound HTTP integrations:
// a bounded timeout and exponential backoff on rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	retryBaseDelay := cfg.RetryBaseDelay
	if retryBaseDelay == 0 {
		retryBaseDelay = time.Second
	}
	return &HTTPClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.Token,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// do performs one HTTP request with bearer auth and retries on 429 with
// exponential backoff (1s, 2s, 4s, 8s, 16s), honoring a Retry-After header
// when the upstream sends one.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("upstream: read request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var reqBody io.Reader
		if bodyBytes != nil {
			reqBody = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("upstream: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("upstream: request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()
		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("upstream: rate limited after %d retries", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if secs, err := strconv.Atoi(retryAfter); err == nil {
				delay = time.Duration(secs) * time.Second
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// decode reads an HTTP response, mapping 404/409/400-with-duplicate to the
// package's sentinel errors so callers can recover per spec.md §7, and
// otherwise JSON-decodes the body into out (skipped when out is nil).
func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		_ = readBodyForError(resp.Body)
		return ErrNotFound
	case http.StatusConflict:
		_ = readBodyForError(resp.Body)
		return ErrConflict
	}

	if resp.StatusCode >= 300 {
		body := readBodyForError(resp.Body)
		if resp.StatusCode == http.StatusBadRequest && looksLikeDuplicate(body) {
			return ErrConflict
		}
		return fmt.Errorf("upstream: request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func looksLikeDuplicate(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "already exists") || strings.Contains(lower, "unique")
}

type channelDTO struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	ChannelNumber float64 `json:"channel_number"`
	GroupID       *int    `json:"channel_group_id"`
	Streams       []int   `json:"streams"`
	TVGID         string  `json:"tvg_id"`
	LogoID        *int    `json:"logo_id"`
	EPGDataID     *int    `json:"epg_data_id"`
}

func (d channelDTO) toModel() models.Channel {
	return models.Channel{
		ID:            d.ID,
		Name:          d.Name,
		ChannelNumber: d.ChannelNumber,
		GroupID:       d.GroupID,
		Streams:       d.Streams,
		TVGID:         d.TVGID,
		LogoID:        d.LogoID,
		EPGDataID:     d.EPGDataID,
	}
}

type channelPageDTO struct {
	Count   int          `json:"count"`
	Next    string       `json:"next"`
	Results []channelDTO `json:"results"`
}

func (c *HTTPClient) ListChannels(ctx context.Context, page, pageSize int, search, group string) (*ChannelPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if search != "" {
		q.Set("search", search)
	}
	if group != "" {
		q.Set("group", group)
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/channels/channels/", q, nil, "")
	if err != nil {
		return nil, err
	}
	var dto channelPageDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	out := &ChannelPage{Count: dto.Count, Next: dto.Next}
	for _, c := range dto.Results {
		out.Results = append(out.Results, c.toModel())
	}
	return out, nil
}

func (c *HTTPClient) GetChannel(ctx context.Context, id int) (*models.Channel, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/channels/channels/%d/", id), nil, nil, "")
	if err != nil {
		return nil, err
	}
	var dto channelDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	m := dto.toModel()
	return &m, nil
}

func (c *HTTPClient) CreateChannel(ctx context.Context, data models.Channel) (*models.Channel, error) {
	payload, err := json.Marshal(channelDTO{
		Name:          data.Name,
		ChannelNumber: data.ChannelNumber,
		GroupID:       data.GroupID,
		Streams:       data.Streams,
		TVGID:         data.TVGID,
		LogoID:        data.LogoID,
		EPGDataID:     data.EPGDataID,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal channel: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/channels/channels/", nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	var dto channelDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	m := dto.toModel()
	return &m, nil
}

func (c *HTTPClient) UpdateChannel(ctx context.Context, id int, data map[string]any) (*models.Channel, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal channel update: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/channels/channels/%d/", id), nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	var dto channelDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	m := dto.toModel()
	return &m, nil
}

func (c *HTTPClient) DeleteChannel(ctx context.Context, id int) error {
	resp, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/channels/channels/%d/", id), nil, nil, "")
	if err != nil {
		return err
	}
	err = decode(resp, nil)
	if err == ErrNotFound {
		return nil // idempotent delete, spec.md §7
	}
	return err
}

func (c *HTTPClient) AssignChannelNumbers(ctx context.Context, ids []int, starting float64) error {
	payload, err := json.Marshal(map[string]any{"channel_ids": ids, "starting_number": starting})
	if err != nil {
		return fmt.Errorf("upstream: marshal renumber request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/channels/channels/assign/", nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

type groupDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (c *HTTPClient) ListChannelGroups(ctx context.Context) ([]models.Group, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/channels/groups/", nil, nil, "")
	if err != nil {
		return nil, err
	}
	var dtos []groupDTO
	if err := decode(resp, &dtos); err != nil {
		return nil, err
	}
	out := make([]models.Group, 0, len(dtos))
	for _, g := range dtos {
		out = append(out, models.Group{ID: g.ID, Name: g.Name})
	}
	return out, nil
}

func (c *HTTPClient) CreateChannelGroup(ctx context.Context, name string) (*models.Group, error) {
	payload, err := json.Marshal(groupDTO{Name: name})
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal group: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/channels/groups/", nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	var dto groupDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	return &models.Group{ID: dto.ID, Name: dto.Name}, nil
}

func (c *HTTPClient) UpdateChannelGroup(ctx context.Context, id int, data map[string]any) (*models.Group, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal group update: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/channels/groups/%d/", id), nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	var dto groupDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	return &models.Group{ID: dto.ID, Name: dto.Name}, nil
}

func (c *HTTPClient) DeleteChannelGroup(ctx context.Context, id int) error {
	resp, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/channels/groups/%d/", id), nil, nil, "")
	if err != nil {
		return err
	}
	err = decode(resp, nil)
	if err == ErrNotFound {
		return nil
	}
	return err
}

func (c *HTTPClient) SetChannelProfileEnabled(ctx context.Context, profileID, channelID int, enabled bool) error {
	payload, err := json.Marshal(map[string]any{"enabled": enabled})
	if err != nil {
		return fmt.Errorf("upstream: marshal profile membership update: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/channels/profiles/%d/channels/%d/", profileID, channelID), nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

type streamDTO struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	GroupName    string `json:"channel_group"`
	TVGID        string `json:"tvg_id"`
	TVGName      string `json:"tvg_name"`
	LogoURL      string `json:"logo_url"`
	ProviderID   int    `json:"m3u_account"`
	ProviderName string `json:"m3u_account_name"`
}

func (d streamDTO) toModel() models.Stream {
	return models.Stream{
		ID:           d.ID,
		Name:         d.Name,
		URL:          d.URL,
		GroupName:    d.GroupName,
		TVGID:        d.TVGID,
		TVGName:      d.TVGName,
		LogoURL:      d.LogoURL,
		ProviderID:   d.ProviderID,
		ProviderName: d.ProviderName,
	}
}

type streamPageDTO struct {
	Count   int         `json:"count"`
	Next    string      `json:"next"`
	Results []streamDTO `json:"results"`
}

func (c *HTTPClient) ListStreams(ctx context.Context, page, pageSize int, providerID int) (*StreamPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if providerID != 0 {
		q.Set("m3u_account", strconv.Itoa(providerID))
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/channels/streams/", q, nil, "")
	if err != nil {
		return nil, err
	}
	var dto streamPageDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	out := &StreamPage{Count: dto.Count, Next: dto.Next}
	for _, s := range dto.Results {
		out.Results = append(out.Results, s.toModel())
	}
	return out, nil
}

type profileDTO struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	IsDefault      bool   `json:"is_default"`
	IsActive       bool   `json:"is_active"`
	MaxStreams     int    `json:"max_streams"`
	SearchPattern  string `json:"search_pattern"`
	ReplacePattern string `json:"replace_pattern"`
}

type providerDTO struct {
	ID         int          `json:"id"`
	Name       string       `json:"name"`
	MaxStreams int          `json:"max_streams"`
	Priority   int          `json:"priority"`
	Profiles   []profileDTO `json:"profiles"`
	UpdatedAt  string       `json:"updated_at"`
}

func (d providerDTO) toModel() models.Provider {
	p := models.Provider{ID: d.ID, Name: d.Name, MaxStreams: d.MaxStreams, Priority: d.Priority}
	for _, pr := range d.Profiles {
		p.Profiles = append(p.Profiles, models.Profile{
			ID: pr.ID, Name: pr.Name, IsDefault: pr.IsDefault, IsActive: pr.IsActive,
			MaxStreams: pr.MaxStreams, SearchPattern: pr.SearchPattern, ReplacePattern: pr.ReplacePattern,
		})
	}
	return p
}

func (c *HTTPClient) ListProviders(ctx context.Context) ([]models.Provider, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/channels/m3u-accounts/", nil, nil, "")
	if err != nil {
		return nil, err
	}
	var dtos []providerDTO
	if err := decode(resp, &dtos); err != nil {
		return nil, err
	}
	out := make([]models.Provider, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (c *HTTPClient) GetProvider(ctx context.Context, id int) (*models.Provider, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/channels/m3u-accounts/%d/", id), nil, nil, "")
	if err != nil {
		return nil, err
	}
	var dto providerDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	m := dto.toModel()
	return &m, nil
}

func (c *HTTPClient) RefreshProvider(ctx context.Context, id int) error {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/channels/m3u-accounts/%d/refresh/", id), nil, bytes.NewReader(nil), "application/json")
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

func (c *HTTPClient) RefreshAllProviders(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/channels/m3u-accounts/refresh-all/", nil, bytes.NewReader(nil), "application/json")
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

type logoDTO struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

func (c *HTTPClient) CreateLogo(ctx context.Context, logoURL, name string) (*Logo, error) {
	payload, err := json.Marshal(map[string]string{"url": logoURL, "name": name})
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal logo: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/channels/logos/", nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	var dto logoDTO
	if decErr := decode(resp, &dto); decErr != nil {
		if decErr == ErrConflict {
			return c.FindLogoByURL(ctx, logoURL)
		}
		return nil, decErr
	}
	return &Logo{ID: dto.ID, URL: dto.URL}, nil
}

func (c *HTTPClient) FindLogoByURL(ctx context.Context, logoURL string) (*Logo, error) {
	q := url.Values{}
	q.Set("url", logoURL)
	resp, err := c.do(ctx, http.MethodGet, "/api/channels/logos/", q, nil, "")
	if err != nil {
		return nil, err
	}
	var dtos []logoDTO
	if err := decode(resp, &dtos); err != nil {
		return nil, err
	}
	if len(dtos) == 0 {
		return nil, ErrNotFound
	}
	return &Logo{ID: dtos[0].ID, URL: dtos[0].URL}, nil
}

func (c *HTTPClient) UploadLogoFile(ctx context.Context, name, filename string, data []byte, mime string) (*Logo, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("upstream: write logo name field: %w", err)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("upstream: create logo file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("upstream: write logo file bytes: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("upstream: close multipart writer: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/channels/logos/upload/", nil, &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var dto logoDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	return &Logo{ID: dto.ID, URL: dto.URL}, nil
}

type epgSourceDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (c *HTTPClient) ListEPGSources(ctx context.Context) ([]EPGSource, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/epg/sources/", nil, nil, "")
	if err != nil {
		return nil, err
	}
	var dtos []epgSourceDTO
	if err := decode(resp, &dtos); err != nil {
		return nil, err
	}
	out := make([]EPGSource, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, EPGSource{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

type epgProgramDTO struct {
	ID          int    `json:"id"`
	TVGID       string `json:"tvg_id"`
	ChannelName string `json:"channel_name"`
}

func (c *HTTPClient) GetEPGData(ctx context.Context, sourceID int, tvgID string) ([]EPGProgram, error) {
	q := url.Values{}
	q.Set("source", strconv.Itoa(sourceID))
	q.Set("tvg_id", tvgID)
	resp, err := c.do(ctx, http.MethodGet, "/api/epg/data/", q, nil, "")
	if err != nil {
		return nil, err
	}
	var dtos []epgProgramDTO
	if err := decode(resp, &dtos); err != nil {
		return nil, err
	}
	out := make([]EPGProgram, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, EPGProgram{ID: d.ID, TVGID: d.TVGID, ChannelName: d.ChannelName})
	}
	return out, nil
}

func (c *HTTPClient) GetEPGGrid(ctx context.Context, start, end string) ([]EPGProgram, error) {
	q := url.Values{}
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/epg/grid/", q, nil, "")
	if err != nil {
		return nil, err
	}
	var dtos []epgProgramDTO
	if err := decode(resp, &dtos); err != nil {
		return nil, err
	}
	out := make([]EPGProgram, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, EPGProgram{ID: d.ID, TVGID: d.TVGID, ChannelName: d.ChannelName})
	}
	return out, nil
}

func (c *HTTPClient) RefreshEPGSource(ctx context.Context, id int) error {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/epg/sources/%d/refresh/", id), nil, bytes.NewReader(nil), "application/json")
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

type clientStatDTO struct {
	IPAddress string `json:"ip_address"`
}

type channelStatDTO struct {
	ChannelID      int             `json:"channel_id"`
	ChannelNumber  float64         `json:"channel_number"`
	ChannelName    string          `json:"channel_name"`
	TotalBytes     int64           `json:"total_bytes"`
	ClientCount    int             `json:"client_count"`
	AvgBitrateKbps int             `json:"avg_bitrate_kbps"`
	ProfileID      int             `json:"m3u_profile_id"`
	Clients        []clientStatDTO `json:"clients"`
}

type channelStatsDTO struct {
	Channels []channelStatDTO `json:"channels"`
}

func (c *HTTPClient) GetChannelStats(ctx context.Context) (*ChannelStatsSnapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/channels/stats/", nil, nil, "")
	if err != nil {
		return nil, err
	}
	var dto channelStatsDTO
	if err := decode(resp, &dto); err != nil {
		return nil, err
	}
	out := &ChannelStatsSnapshot{}
	for _, ch := range dto.Channels {
		entry := ChannelStatEntry{
			ChannelID: ch.ChannelID, ChannelNumber: ch.ChannelNumber, ChannelName: ch.ChannelName,
			TotalBytes: ch.TotalBytes, ClientCount: ch.ClientCount, AvgBitrateKbps: ch.AvgBitrateKbps,
			ProfileID: ch.ProfileID,
		}
		for _, cl := range ch.Clients {
			entry.Clients = append(entry.Clients, ClientEntry{IPAddress: cl.IPAddress})
		}
		out.Channels = append(out.Channels, entry)
	}
	return out, nil
}

var _ Client = (*HTTPClient)(nil)
