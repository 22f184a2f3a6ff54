// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package store

// initialSchemaSQL creates every table spec.md §6 names under "Persisted
// state". rule_groups and channel_watch_stats are housekeeping tables the
// spec names but never shapes beyond "table-level" — rule_groups exists
// for a future grouping feature out of this spec's scope; channel_watch_stats
// holds the same per-channel watch-second rollup as channel_bandwidth,
// kept in sync by BandwidthStore.UpsertChannelBandwidth so it is not dead
// weight (see DESIGN.md). webhook_secret is a single-row table holding the
// bcrypt hash of the configured notification webhook's shared secret.
const initialSchemaSQL = `
CREATE TABLE IF NOT EXISTS rule_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 0,
	provider_id INTEGER,
	target_group_id INTEGER,
	conditions_json TEXT NOT NULL DEFAULT '[]',
	actions_json TEXT NOT NULL DEFAULT '[]',
	stop_on_first_match INTEGER NOT NULL DEFAULT 0,
	sort_field TEXT NOT NULL DEFAULT '',
	sort_order TEXT NOT NULL DEFAULT 'asc',
	probe_on_sort INTEGER NOT NULL DEFAULT 0,
	normalize_names INTEGER NOT NULL DEFAULT 0,
	orphan_action TEXT NOT NULL DEFAULT 'none',
	managed_channel_ids_json TEXT,
	match_count INTEGER NOT NULL DEFAULT 0,
	last_run_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mode TEXT NOT NULL,
	triggered_by TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	status TEXT NOT NULL,
	streams_evaluated INTEGER NOT NULL DEFAULT 0,
	streams_matched INTEGER NOT NULL DEFAULT 0,
	channels_created INTEGER NOT NULL DEFAULT 0,
	channels_updated INTEGER NOT NULL DEFAULT 0,
	groups_created INTEGER NOT NULL DEFAULT 0,
	streams_merged INTEGER NOT NULL DEFAULT 0,
	streams_skipped INTEGER NOT NULL DEFAULT 0,
	created_entities_json TEXT NOT NULL DEFAULT '[]',
	modified_entities_json TEXT NOT NULL DEFAULT '[]',
	execution_log_json TEXT NOT NULL DEFAULT '[]',
	dry_run_results_json TEXT NOT NULL DEFAULT '[]',
	rolled_back_at TIMESTAMP,
	rolled_back_by TEXT
);

CREATE TABLE IF NOT EXISTS conflicts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id INTEGER NOT NULL REFERENCES executions(id),
	stream_id INTEGER NOT NULL,
	stream_name TEXT NOT NULL DEFAULT '',
	winning_rule_id INTEGER NOT NULL,
	losing_rule_ids_json TEXT NOT NULL DEFAULT '[]',
	conflict_type TEXT NOT NULL,
	resolution TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_conflicts_execution ON conflicts(execution_id);

CREATE TABLE IF NOT EXISTS stream_stats (
	stream_id INTEGER PRIMARY KEY,
	provider_id INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	video_codec TEXT NOT NULL DEFAULT '',
	audio_codec TEXT NOT NULL DEFAULT '',
	resolution_width INTEGER NOT NULL DEFAULT 0,
	resolution_height INTEGER NOT NULL DEFAULT 0,
	bitrate_kbps INTEGER NOT NULL DEFAULT 0,
	measured_mbps REAL NOT NULL DEFAULT 0,
	frame_rate REAL NOT NULL DEFAULT 0,
	audio_channels INTEGER NOT NULL DEFAULT 0,
	consecutive_fails INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	last_probed_at TIMESTAMP,
	last_success_at TIMESTAMP,
	dismissed INTEGER NOT NULL DEFAULT 0,
	dismissed_at TIMESTAMP,
	dismissed_by TEXT NOT NULL DEFAULT '',
	dismissed_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS bandwidth_daily (
	date TEXT PRIMARY KEY,
	bytes_transferred INTEGER NOT NULL DEFAULT 0,
	bytes_in INTEGER NOT NULL DEFAULT 0,
	bytes_out INTEGER NOT NULL DEFAULT 0,
	peak_channels INTEGER NOT NULL DEFAULT 0,
	peak_clients INTEGER NOT NULL DEFAULT 0,
	peak_bitrate_in INTEGER NOT NULL DEFAULT 0,
	peak_bitrate_out INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS channel_bandwidth (
	channel_id INTEGER NOT NULL,
	date TEXT NOT NULL,
	channel_name TEXT NOT NULL DEFAULT '',
	bytes_transferred INTEGER NOT NULL DEFAULT 0,
	peak_clients INTEGER NOT NULL DEFAULT 0,
	total_watch_seconds INTEGER NOT NULL DEFAULT 0,
	connection_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (channel_id, date)
);

CREATE TABLE IF NOT EXISTS channel_watch_stats (
	channel_id INTEGER NOT NULL,
	date TEXT NOT NULL,
	total_watch_seconds INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (channel_id, date)
);

CREATE TABLE IF NOT EXISTS unique_client_connections (
	id TEXT PRIMARY KEY,
	ip_address TEXT NOT NULL,
	channel_id INTEGER NOT NULL,
	channel_name TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL,
	connected_at TIMESTAMP NOT NULL,
	disconnected_at TIMESTAMP,
	watch_seconds INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ucc_channel_open ON unique_client_connections(channel_id, disconnected_at);

CREATE TABLE IF NOT EXISTS tag_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id INTEGER NOT NULL REFERENCES tag_groups(id),
	value TEXT NOT NULL,
	case_sensitive INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_tags_group ON tags(group_id);

CREATE TABLE IF NOT EXISTS normalization_rule_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS normalization_rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id INTEGER NOT NULL REFERENCES normalization_rule_groups(id),
	name TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 0,
	condition_type TEXT NOT NULL DEFAULT 'always',
	condition_value TEXT NOT NULL DEFAULT '',
	case_sensitive INTEGER NOT NULL DEFAULT 0,
	conditions_json TEXT,
	condition_logic TEXT NOT NULL DEFAULT 'AND',
	tag_group_id INTEGER NOT NULL DEFAULT 0,
	tag_match_position TEXT NOT NULL DEFAULT 'contains',
	action_type TEXT NOT NULL DEFAULT 'remove',
	action_value TEXT NOT NULL DEFAULT '',
	else_action_type TEXT NOT NULL DEFAULT '',
	else_action_value TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_normalization_rules_group ON normalization_rules(group_id);

CREATE TABLE IF NOT EXISTS webhook_secret (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	secret_hash TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	occurred_at TIMESTAMP NOT NULL,
	payload_json TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_journal_entries_event_type ON journal_entries(event_type);
`
