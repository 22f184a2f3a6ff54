// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package bandwidth implements the Bandwidth & Watch Tracker: a long-lived
// loop that polls the upstream's live channel-stats endpoint on a fixed
// cadence and derives per-day, per-channel, and per-client-IP usage from the
// cumulative byte counters it reports.
//
// Tracker polls upstream.Client.ChannelStats on PollInterval, diffs the
// result against the previous sample to compute byte deltas and the set of
// active client IPs per channel, and applies those diffs to the injected
// Store (daily/channel/connection aggregates) while publishing watch-start
// and watch-stop events for the journal. See doc comments on Tracker.Poll for
// the exact per-sample algorithm (spec.md §4.5).
//
// EstimateBandwidth, CalculateBandwidthGB, and the resolution-tier table in
// estimator.go are exported for internal/prober's post-probe sanity check
// (see bandwidthSanityCheck in that package): a measured bitrate far below
// what the probed resolution normally needs for direct play (e.g. a "1080p"
// stream measuring 200 Kbps) usually means the throughput sample window
// caught a stall rather than steady-state playback, and gets logged rather
// than trusted. They play no part in this package's own byte-delta math,
// which always uses the upstream's reported cumulative counters.
package bandwidth
