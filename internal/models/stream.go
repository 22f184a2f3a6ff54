// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package models

// Stream is an immutable snapshot of one provider stream as seen at the
// start of a pipeline run. It is never mutated during the run — the
// evaluator and executor read it, they never write it.
type Stream struct {
	ID               int
	Name             string
	URL              string
	GroupName        string
	TVGID            string
	TVGName          string
	LogoURL          string
	ProviderID       int
	ProviderName     string
	ResolutionHeight int // 0 when unknown/not yet probed
	NormalizedName   string
}

// Channel is owned by the upstream; dispatchctl only reads and mutates it
// through upstream.Client.
type Channel struct {
	ID             int
	Name           string
	ChannelNumber  float64
	GroupID        *int
	Streams        []int
	TVGID          string
	LogoID         *int
	EPGDataID      *int
	StreamProfileID *int
	AutoCreated    bool
	AutoCreatedBy  int // rule ID, 0 when not auto-created
}

// Group is owned by the upstream.
type Group struct {
	ID   int
	Name string
}

// Provider (a.k.a. M3U account) is one authenticated feed of streams inside
// the upstream.
type Provider struct {
	ID         int
	Name       string
	MaxStreams int // 0 means unlimited
	Priority   int // used as the m3u_priority reorder key, higher wins
	Profiles   []Profile
}

// Profile is a provider's stream profile: a URL variant with its own
// concurrency cap.
type Profile struct {
	ID             int
	Name           string
	IsDefault      bool
	IsActive       bool
	MaxStreams     int // 0 means unlimited
	SearchPattern  string
	ReplacePattern string
}
