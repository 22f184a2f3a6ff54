// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package models

import "time"

// BandwidthDaily is the tracker's coarsest aggregate: total bytes served by
// the upstream across all channels for one calendar day, keyed by date in
// the tracker's configured local timezone.
type BandwidthDaily struct {
	Date             time.Time // truncated to day, local timezone
	BytesTransferred int64     // BytesIn + BytesOut
	BytesIn          int64
	BytesOut         int64
	PeakChannels     int // highest number of simultaneously-active channels seen this day
	PeakClients      int // highest number of simultaneously-connected client IPs seen this day
	PeakBitrateIn    int // kbps, highest single-sample in-bitrate seen this day
	PeakBitrateOut   int // kbps, highest single-sample out-bitrate seen this day
}

// ChannelBandwidth is bytes served broken down per channel per day, the
// level spec.md §4.5 asks the tracker to keep.
type ChannelBandwidth struct {
	ChannelID        int
	ChannelName      string
	Date             time.Time
	BytesTransferred int64
	PeakClients      int
	TotalWatchSeconds int64
	ConnectionCount  int // cumulative UniqueClientConnection rows opened this day
}

// UniqueClientConnection is one continuous viewing session the tracker
// inferred from the upstream's channel-stats client list: a client IP
// appearing against a channel in one poll and disappearing in a later one.
// DisconnectedAt is nil while the session is still active, which callers
// read as "IP is still present in the most recent stats sample".
type UniqueClientConnection struct {
	ID             string
	IPAddress      string
	ChannelID      int
	ChannelName    string
	Date           time.Time
	ConnectedAt    time.Time
	DisconnectedAt *time.Time
	WatchSeconds   int64
}
