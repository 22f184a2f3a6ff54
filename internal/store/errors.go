// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package store

import "errors"

// ErrNotFound is returned by a single-row lookup (GetRule, GetExecution,
// ...) when no row matches the given id.
var ErrNotFound = errors.New("store: not found")
