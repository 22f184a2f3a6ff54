// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dispatchctl/internal/models"
)

// RuleStore persists rules, their executions, the conflicts those
// executions recorded, and the tag/normalization registries a rule's
// conditions resolve against (spec.md §3, §6).
type RuleStore struct {
	db *DB
}

func NewRuleStore(db *DB) *RuleStore { return &RuleStore{db: db} }

// ListEnabledRules returns every enabled rule, ordered by priority
// ascending, then by id.
func (s *RuleStore) ListEnabledRules(ctx context.Context) ([]models.Rule, error) {
	return s.listRules(ctx, `WHERE enabled = 1`)
}

// ListRules returns every rule regardless of enabled state.
func (s *RuleStore) ListRules(ctx context.Context) ([]models.Rule, error) {
	return s.listRules(ctx, ``)
}

func (s *RuleStore) listRules(ctx context.Context, where string) ([]models.Rule, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	rows, err := s.db.conn.QueryContext(ctx, ruleSelectColumns+" FROM rules "+where+" ORDER BY priority ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("store: list rules: %w", err)
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRule returns one rule by id, or ErrNotFound.
func (s *RuleStore) GetRule(ctx context.Context, id int) (models.Rule, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	row := s.db.conn.QueryRowContext(ctx, ruleSelectColumns+" FROM rules WHERE id = ?", id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return models.Rule{}, ErrNotFound
	}
	if err != nil {
		return models.Rule{}, fmt.Errorf("store: get rule %d: %w", id, err)
	}
	return r, nil
}

const ruleSelectColumns = `SELECT id, name, enabled, priority, provider_id, target_group_id, conditions_json,
	actions_json, stop_on_first_match, sort_field, sort_order, probe_on_sort, normalize_names,
	orphan_action, managed_channel_ids_json, match_count, last_run_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (models.Rule, error) {
	var r models.Rule
	var providerID, targetGroupID sql.NullInt64
	var conditionsJSON, actionsJSON string
	var managedChannelIDsJSON sql.NullString
	var lastRunAt sql.NullTime

	if err := row.Scan(&r.ID, &r.Name, &r.Enabled, &r.Priority, &providerID, &targetGroupID,
		&conditionsJSON, &actionsJSON, &r.StopOnFirstMatch, &r.SortField, &r.SortOrder,
		&r.ProbeOnSort, &r.NormalizeNames, &r.OrphanAction, &managedChannelIDsJSON,
		&r.MatchCount, &lastRunAt); err != nil {
		return models.Rule{}, err
	}

	if providerID.Valid {
		v := int(providerID.Int64)
		r.ProviderID = &v
	}
	if targetGroupID.Valid {
		v := int(targetGroupID.Int64)
		r.TargetGroupID = &v
	}
	if err := json.Unmarshal([]byte(conditionsJSON), &r.Conditions); err != nil {
		return models.Rule{}, fmt.Errorf("store: decode rule %d conditions: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(actionsJSON), &r.Actions); err != nil {
		return models.Rule{}, fmt.Errorf("store: decode rule %d actions: %w", r.ID, err)
	}
	if managedChannelIDsJSON.Valid {
		if err := json.Unmarshal([]byte(managedChannelIDsJSON.String), &r.ManagedChannelIDs); err != nil {
			return models.Rule{}, fmt.Errorf("store: decode rule %d managed channels: %w", r.ID, err)
		}
	}
	if lastRunAt.Valid {
		t := lastRunAt.Time
		r.LastRunAt = &t
	}
	return r, nil
}

// SaveRule inserts a new rule (ID == 0) or updates an existing one in
// place, including the ManagedChannelIDs/MatchCount/LastRunAt fields a
// pipeline run refreshes (spec.md §3 invariant on managed_channel_ids).
func (s *RuleStore) SaveRule(ctx context.Context, r *models.Rule) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	conditionsJSON, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("store: encode conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("store: encode actions: %w", err)
	}
	var managedChannelIDsJSON []byte
	if r.ManagedChannelIDs != nil {
		managedChannelIDsJSON, err = json.Marshal(r.ManagedChannelIDs)
		if err != nil {
			return fmt.Errorf("store: encode managed channel ids: %w", err)
		}
	}

	if r.ID == 0 {
		res, err := s.db.conn.ExecContext(ctx, `
			INSERT INTO rules (name, enabled, priority, provider_id, target_group_id, conditions_json,
				actions_json, stop_on_first_match, sort_field, sort_order, probe_on_sort, normalize_names,
				orphan_action, managed_channel_ids_json, match_count, last_run_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Name, r.Enabled, r.Priority, nullableInt(r.ProviderID), nullableInt(r.TargetGroupID),
			string(conditionsJSON), string(actionsJSON), r.StopOnFirstMatch, r.SortField, r.SortOrder,
			r.ProbeOnSort, r.NormalizeNames, r.OrphanAction, nullableString(managedChannelIDsJSON),
			r.MatchCount, r.LastRunAt)
		if err != nil {
			return fmt.Errorf("store: insert rule: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: insert rule id: %w", err)
		}
		r.ID = int(id)
		return nil
	}

	_, err = s.db.conn.ExecContext(ctx, `
		UPDATE rules SET name=?, enabled=?, priority=?, provider_id=?, target_group_id=?, conditions_json=?,
			actions_json=?, stop_on_first_match=?, sort_field=?, sort_order=?, probe_on_sort=?, normalize_names=?,
			orphan_action=?, managed_channel_ids_json=?, match_count=?, last_run_at=?
		WHERE id=?`,
		r.Name, r.Enabled, r.Priority, nullableInt(r.ProviderID), nullableInt(r.TargetGroupID),
		string(conditionsJSON), string(actionsJSON), r.StopOnFirstMatch, r.SortField, r.SortOrder,
		r.ProbeOnSort, r.NormalizeNames, r.OrphanAction, nullableString(managedChannelIDsJSON),
		r.MatchCount, r.LastRunAt, r.ID)
	if err != nil {
		return fmt.Errorf("store: update rule %d: %w", r.ID, err)
	}
	return nil
}

// DeleteRule removes a rule permanently. It does not touch channels the
// rule previously created — that is the engine's orphan_action concern.
func (s *RuleStore) DeleteRule(ctx context.Context, id int) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete rule %d: %w", id, err)
	}
	return nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
