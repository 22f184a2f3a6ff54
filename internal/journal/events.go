// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package journal

import "time"

// EventType names one kind of domain event this system emits. The journal
// writer that persists these is out of scope; only the catalog is.
type EventType string

const (
	EventRuleExecuted        EventType = "rule.executed"
	EventRuleRolledBack      EventType = "rule.rolled_back"
	EventChannelCreated      EventType = "channel.created"
	EventChannelMerged       EventType = "channel.merged"
	EventChannelOrphanRemoved EventType = "channel.orphan_removed"
	EventGroupCreated        EventType = "group.created"
	EventGroupDeleted        EventType = "group.deleted"
	EventWatchStart          EventType = "watch.start"
	EventWatchStop           EventType = "watch.stop"
	EventProbeCompleted      EventType = "probe.completed"
)

// Event is one occurrence of an EventType, with a free-form payload shaped
// by the emitting component (e.g. watch.start carries channel_id and the
// client IPs that just appeared).
type Event struct {
	ID         string
	Type       EventType
	OccurredAt time.Time
	Payload    map[string]any
}
