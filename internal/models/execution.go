// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package models

import "time"

// ExecutionMode selects whether a pipeline run writes to the upstream.
type ExecutionMode string

const (
	ModeDryRun ExecutionMode = "dry_run"
	ModeExecute ExecutionMode = "execute"
)

// ExecutionStatus tracks an Execution's lifecycle.
type ExecutionStatus string

const (
	StatusRunning     ExecutionStatus = "running"
	StatusCompleted   ExecutionStatus = "completed"
	StatusRolledBack  ExecutionStatus = "rolled_back"
	StatusFailed      ExecutionStatus = "failed"
)

// EntityKind identifies what an EntityRef.ID refers to, for rollback.
type EntityKind string

const (
	EntityChannel EntityKind = "channel"
	EntityGroup   EntityKind = "group"
)

// EntityRef records one upstream entity dispatchctl created or modified
// during an Execution, carrying enough of the before-state to reverse the
// mutation. CreatedEntities are deleted on rollback (in reverse order);
// ModifiedEntities have PreviousState restored.
type EntityRef struct {
	Kind          EntityKind
	ID            int
	Name          string
	RuleID        int
	StreamID      int
	PreviousState map[string]any // nil for CreatedEntities
}

// ActionResult is the outcome of executing one Action against one Stream.
// Dry-run and real executions produce identically shaped results; dry-run
// never performs upstream calls.
type ActionResult struct {
	Success       bool
	ActionType    ActionType
	Description   string
	EntityType    string
	EntityID      int
	EntityName    string
	Created       bool
	Modified      bool
	Skipped       bool
	PreviousState map[string]any
	Error         string
	Details       map[string]any
}

// ConditionLogEntry records one condition's evaluation outcome for a single
// (stream, rule) pair, preserved even when the condition did not determine
// the final match (evaluation never short-circuits — spec.md §4.1).
type ConditionLogEntry struct {
	Type      ConditionType
	Value     string
	Matched   bool
	Details   string
	Connector Connector
}

// ExecutionLogEntry is one stream's full trace through Pass 2: which rule
// won, whether it matched, and the ordered ActionResults from executing
// that rule's action list. Recovered from original_source/auto_creation_engine.py
// (distilled spec.md §3 names only "execution_log" without a shape).
type ExecutionLogEntry struct {
	StreamID   int
	StreamName string
	RuleID     int
	Matched    bool
	Actions    []ActionResult
	Conflict   *Conflict
}

// Execution is one invocation of the auto-creation pipeline, recorded for
// audit and rollback.
type Execution struct {
	ID                int
	Mode              ExecutionMode
	TriggeredBy       string
	StartedAt         time.Time
	CompletedAt       *time.Time
	Status            ExecutionStatus
	StreamsEvaluated  int
	StreamsMatched    int
	ChannelsCreated   int
	ChannelsUpdated   int
	GroupsCreated     int
	StreamsMerged     int
	StreamsSkipped    int
	CreatedEntities   []EntityRef
	ModifiedEntities  []EntityRef
	ExecutionLog      []ExecutionLogEntry // mode=execute
	DryRunResults     []ExecutionLogEntry // mode=dry_run
	RolledBackAt      *time.Time
	RolledBackBy      string
}

// ConflictType classifies why more than one rule matched a stream.
// Recovered from original_source/auto_creation_executor.py; the distilled
// spec leaves conflict_type as an opaque string.
type ConflictType string

const (
	ConflictPriorityOverride     ConflictType = "priority_override"
	ConflictDuplicateActionType  ConflictType = "duplicate_action_type"
	ConflictTargetOverlap        ConflictType = "target_overlap"
)

// Conflict records that more than one rule matched a stream. The winner's
// actions run; losers never act — conflicts are recorded, not resolved
// (spec.md §4.3).
type Conflict struct {
	ExecutionID    int
	StreamID       int
	StreamName     string
	WinningRuleID  int
	LosingRuleIDs  []int
	ConflictType   ConflictType
	Resolution     string
	Description    string
}
