// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package notify implements the outbound notification dispatch contract
// (spec.md §6): create/update/delete_by_source against one or more sinks.
// The delivery channel implementations themselves (email, Telegram, a
// specific Discord integration) are external collaborators; this package
// only specifies the contract and a generic webhook sink that exercises it,
// grounded on the teacher's internal/detection webhook notifier.
package notify
