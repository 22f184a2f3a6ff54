// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package prober implements the StreamProber: per-provider ramp-up control,
// profile-aware concurrency, a bounded global dispatch loop, retrying
// subprocess probes, post-probe channel reordering, and run history.
//
// A Prober is built once and run repeatedly — either as a one-shot sweep
// (Run) invoked by the engine's probe-on-sort pass, or as a long-lived
// suture.Service (Serve) supervising scheduled full-catalog sweeps.
package prober
