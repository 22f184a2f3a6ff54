// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package evaluator implements the AutoCreationEngine's Pass 1: a pure,
// side-effect-free function that tests one stream against one rule's
// condition list and returns whether it matched, together with a complete
// trace of every condition checked. Evaluation never short-circuits —
// every condition in the rule runs, so the returned log always explains
// the full decision, not just the first condition that happened to settle
// it (spec.md §4.1).
package evaluator
