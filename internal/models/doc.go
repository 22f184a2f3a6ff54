// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package models holds the data types shared across dispatchctl's
// components: the upstream-owned entities (Stream, Channel, Group), the
// rule engine's configuration and audit types (Rule, Condition, Action,
// Execution, Conflict), the prober's result type (StreamStats), and the
// bandwidth tracker's aggregates (BandwidthDaily, ChannelBandwidth,
// UniqueClientConnection).
//
// Stream, Channel, and Group are owned by the upstream IPTV backend; this
// package only mirrors the shape dispatchctl needs to read and mutate them
// through upstream.Client. Rule, Execution, Conflict, StreamStats, and the
// bandwidth aggregates are owned by dispatchctl and persisted via
// internal/store.
package models
