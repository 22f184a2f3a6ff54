// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package models

import "time"

// OrphanAction controls what happens to a channel a rule no longer manages.
type OrphanAction string

const (
	OrphanDelete                 OrphanAction = "delete"
	OrphanMoveUncategorized      OrphanAction = "move_uncategorized"
	OrphanDeleteAndCleanupGroups OrphanAction = "delete_and_cleanup_groups"
	OrphanNone                   OrphanAction = "none"
)

// SortOrder is the direction a rule's sort_field is applied in.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// ConditionType enumerates the condition kinds a Rule can test a Stream
// against. tag_in resolves against the injected TagRegistry; the rest are
// pure string/int comparisons against Stream fields.
type ConditionType string

const (
	ConditionNameContains  ConditionType = "name_contains"
	ConditionNameRegex     ConditionType = "name_regex"
	ConditionGroupEquals   ConditionType = "group_equals"
	ConditionTagIn         ConditionType = "tag_in"
	ConditionTVGPresent    ConditionType = "tvg_present"
	ConditionResolutionGE  ConditionType = "resolution_ge"
	ConditionAlways        ConditionType = "always"
)

// Connector joins one Condition to the next within a rule's condition list.
type Connector string

const (
	ConnectorAnd Connector = "and"
	ConnectorOr  Connector = "or"
)

// Condition is one term in a rule's OR-of-AND-groups condition sequence.
// Connector describes how this condition joins to the PRECEDING one — an
// "or" connector starts a new AND-group (see evaluator.Evaluate).
type Condition struct {
	Type      ConditionType
	Value     string
	Connector Connector
	Negate    bool
}

// ActionType enumerates the actions a Rule's winning match can execute, in
// declaration order, against the upstream.
type ActionType string

const (
	ActionCreateChannel   ActionType = "create_channel"
	ActionCreateGroup     ActionType = "create_group"
	ActionMergeStreams    ActionType = "merge_streams"
	ActionAssignLogo      ActionType = "assign_logo"
	ActionAssignTVGID     ActionType = "assign_tvg_id"
	ActionAssignEPG       ActionType = "assign_epg"
	ActionAssignProfile   ActionType = "assign_profile"
	ActionSetChannelNum   ActionType = "set_channel_number"
	ActionSetVariable     ActionType = "set_variable"
	ActionSkip            ActionType = "skip"
	ActionStopProcessing  ActionType = "stop_processing"
	ActionLogMatch        ActionType = "log_match"
)

// Action is one step in a rule's action list. Params is a loosely typed
// bag validated by the executor per ActionType (see executor.Params*
// accessor helpers) — this mirrors how the distilled spec leaves action
// parameters untyped per kind.
type Action struct {
	Type   ActionType
	Params map[string]any
}

// Rule is a configured (conditions, actions) pair with priority and
// orphan-reconciliation policy. Lower Priority runs first.
// ManagedChannelIDs is the durable reconciliation anchor described in
// spec.md §3 — it is nil only before the rule's first non-dry-run
// execution.
type Rule struct {
	ID                int
	Name              string
	Enabled           bool
	Priority          int
	ProviderID        *int
	TargetGroupID     *int
	Conditions        []Condition
	Actions           []Action
	StopOnFirstMatch  bool
	SortField         string // "" or "quality"
	SortOrder         SortOrder
	ProbeOnSort       bool
	NormalizeNames    bool
	OrphanAction      OrphanAction
	ManagedChannelIDs []int // nil means "never run non-dry-run"
	MatchCount        int
	LastRunAt         *time.Time
}
