// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package executor

// ExecutionContext carries the per-stream, per-rule-match state that flows
// between one rule's actions: which channel/group the most recent
// create/merge action touched (so the next action in the list can operate
// on it without re-specifying a target), the variables set_variable has
// accumulated so far, and whether this is a dry run.
//
// One ExecutionContext is created per (stream, matched rule) pair; it does
// not survive across streams.
type ExecutionContext struct {
	DryRun           bool
	CurrentChannelID int
	CurrentGroupID   int
	CustomVariables  map[string]string
}

// NewExecutionContext returns a context ready for a fresh action list run.
func NewExecutionContext(dryRun bool) *ExecutionContext {
	return &ExecutionContext{DryRun: dryRun, CustomVariables: make(map[string]string)}
}
