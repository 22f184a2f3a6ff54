// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package upstream

import (
	"context"
	"errors"

	"github.com/tomtom215/dispatchctl/internal/models"
)

// ErrNotFound is returned when the upstream responds 404. Callers that
// treat a missing entity as already-deleted (spec.md §7, "Upstream 404 on
// delete") should check errors.Is(err, ErrNotFound) rather than inspecting
// status codes directly.
var ErrNotFound = errors.New("upstream: entity not found")

// ErrConflict is returned on a 4xx response the upstream attributes to a
// duplicate entity (e.g. a logo with the same source URL already exists).
// Callers recover locally by looking the existing entity up.
var ErrConflict = errors.New("upstream: duplicate entity")

// ChannelPage is one page of list_channels.
type ChannelPage struct {
	Count   int
	Next    string
	Results []models.Channel
}

// StreamPage is one page of list_streams.
type StreamPage struct {
	Count   int
	Next    string
	Results []models.Stream
}

// ChannelStatsSnapshot is the shape get_channel_stats returns: one entry
// per currently-live channel with its cumulative byte counter and the set
// of connected client IPs at the moment of the call.
type ChannelStatsSnapshot struct {
	Channels []ChannelStatEntry
}

// ChannelStatEntry is one channel's row within a ChannelStatsSnapshot.
type ChannelStatEntry struct {
	ChannelID      int
	ChannelNumber  float64
	ChannelName    string
	TotalBytes     int64
	ClientCount    int
	AvgBitrateKbps int
	ProfileID      int
	Clients        []ClientEntry
}

// ClientEntry is one connected client within a ChannelStatEntry.
type ClientEntry struct {
	IPAddress string
}

// Logo is an upstream-hosted channel logo.
type Logo struct {
	ID  int
	URL string
}

// EPGSource is one configured EPG feed.
type EPGSource struct {
	ID   int
	Name string
}

// EPGProgram is one EPG data entry — either a channel-mapping row from
// GetEPGData (ID is the epg_data_id a channel's EPGDataID points at) or a
// grid listing row from GetEPGGrid.
type EPGProgram struct {
	ID          int
	TVGID       string
	ChannelName string
}

// Client is every upstream operation dispatchctl's pipeline, prober, and
// bandwidth tracker need. It mirrors spec.md §6's REST contract; the
// paginated list operations return one page per call, callers page through
// results themselves.
type Client interface {
	ListChannels(ctx context.Context, page, pageSize int, search, group string) (*ChannelPage, error)
	GetChannel(ctx context.Context, id int) (*models.Channel, error)
	CreateChannel(ctx context.Context, data models.Channel) (*models.Channel, error)
	UpdateChannel(ctx context.Context, id int, data map[string]any) (*models.Channel, error)
	DeleteChannel(ctx context.Context, id int) error
	AssignChannelNumbers(ctx context.Context, ids []int, starting float64) error

	ListChannelGroups(ctx context.Context) ([]models.Group, error)
	CreateChannelGroup(ctx context.Context, name string) (*models.Group, error)
	UpdateChannelGroup(ctx context.Context, id int, data map[string]any) (*models.Group, error)
	DeleteChannelGroup(ctx context.Context, id int) error

	// SetChannelProfileEnabled enables or disables one channel within one
	// stream profile's channel membership list (used to seed a newly
	// created channel's default profile set).
	SetChannelProfileEnabled(ctx context.Context, profileID, channelID int, enabled bool) error

	ListStreams(ctx context.Context, page, pageSize int, providerID int) (*StreamPage, error)

	ListProviders(ctx context.Context) ([]models.Provider, error)
	GetProvider(ctx context.Context, id int) (*models.Provider, error)
	RefreshProvider(ctx context.Context, id int) error
	RefreshAllProviders(ctx context.Context) error

	CreateLogo(ctx context.Context, url, name string) (*Logo, error)
	FindLogoByURL(ctx context.Context, url string) (*Logo, error)
	UploadLogoFile(ctx context.Context, name, filename string, data []byte, mime string) (*Logo, error)

	ListEPGSources(ctx context.Context) ([]EPGSource, error)
	GetEPGData(ctx context.Context, sourceID int, tvgID string) ([]EPGProgram, error)
	GetEPGGrid(ctx context.Context, start, end string) ([]EPGProgram, error)
	RefreshEPGSource(ctx context.Context, id int) error

	GetChannelStats(ctx context.Context) (*ChannelStatsSnapshot, error)
}
