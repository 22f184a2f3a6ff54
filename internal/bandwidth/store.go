// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package bandwidth

import (
	"context"
	"time"

	"github.com/tomtom215/dispatchctl/internal/models"
)

// Store is the durable aggregate layer the tracker writes through. The
// daily row is upserted once per poll cycle; a channel row is upserted once
// per poll for its byte delta and once more for each newly connected client
// IP. The tracker itself holds no state across process restarts beyond
// what it reads back through GetBandwidthDaily/GetChannelBandwidth.
type Store interface {
	// GetBandwidthDaily returns today's row, or a zero-value row (Date set,
	// everything else zero) if none exists yet.
	GetBandwidthDaily(ctx context.Context, date time.Time) (models.BandwidthDaily, error)
	UpsertBandwidthDaily(ctx context.Context, row models.BandwidthDaily) error

	GetChannelBandwidth(ctx context.Context, channelID int, date time.Time) (models.ChannelBandwidth, error)
	UpsertChannelBandwidth(ctx context.Context, row models.ChannelBandwidth) error

	// OpenConnections returns every UniqueClientConnection row for channelID
	// still missing a DisconnectedAt — the tracker's "currently active IPs"
	// bookkeeping survives a process restart by reading this back instead of
	// keeping its own in-memory client-set cache.
	OpenConnections(ctx context.Context, channelID int) ([]models.UniqueClientConnection, error)
	CreateConnection(ctx context.Context, conn models.UniqueClientConnection) error
	UpdateConnectionWatchSeconds(ctx context.Context, id string, watchSeconds int64) error
	CloseConnection(ctx context.Context, id string, disconnectedAt time.Time) error

	// PurgeBandwidthOlderThan deletes BandwidthDaily/ChannelBandwidth rows
	// (and their closed connections) dated before cutoff, returning the
	// number of BandwidthDaily rows removed.
	PurgeBandwidthOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
