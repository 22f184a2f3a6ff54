// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package executor runs a matched rule's action list against the upstream,
// Pass 2 of the AutoCreationEngine's pipeline (spec.md §4.2). An
// ActionExecutor is built once per pipeline run from a snapshot of the
// upstream's current channels and groups; it keeps several lookup indices
// (by id, by name, by a number-stripped base name, by normalization-engine
// output, by a tag-stripped "core name", and by FCC call sign) so that
// create_channel and merge_streams can find the same channel a human would
// recognize, not just an exact id or name match.
//
// In dry-run mode, simulated channels and groups are assigned negative
// placeholder ids counting down from -1 (-1, -2, ...) and inserted into the same indices as real entities, so later actions in the
// same run (including later streams matched by the same or a different
// rule) see them as if they already existed — mirroring how a live run's
// freshly created entities become visible to subsequent actions.
package executor
