// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package engine implements the AutoCreationEngine: the pipeline that
// loads a snapshot of upstream streams, channels, and groups, evaluates
// every configured rule against every stream, executes the winning rule's
// actions, renumbers and reorders the channels it touched, and reconciles
// channels a rule no longer manages (spec.md §4.3). A run is either a dry
// run (simulated entities only, nothing persisted upstream) or a live
// execution, and every live execution can be rolled back by replaying its
// recorded entity mutations in reverse.
package engine
