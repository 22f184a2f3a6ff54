// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package journal defines the event catalog the engine, prober, and
// bandwidth tracker emit and an in-process publisher for it. The durable
// journal/audit log writer is an external collaborator (spec.md §1) — this
// package only specifies what gets published, not where it ends up.
package journal
