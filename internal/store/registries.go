// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/rules"
)

// LoadTagRegistry reads every tag_groups/tags row and builds the
// rules.TagRegistry a pipeline run injects into its ConditionEvaluator
// (SPEC_FULL.md supplemented feature 1).
func (s *RuleStore) LoadTagRegistry(ctx context.Context) (*rules.TagRegistry, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	groupRows, err := s.db.conn.QueryContext(ctx, `SELECT id, name, enabled FROM tag_groups`)
	if err != nil {
		return nil, fmt.Errorf("store: list tag groups: %w", err)
	}
	var groups []models.TagGroup
	for groupRows.Next() {
		var g models.TagGroup
		if err := groupRows.Scan(&g.ID, &g.Name, &g.Enabled); err != nil {
			groupRows.Close()
			return nil, fmt.Errorf("store: scan tag group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := groupRows.Err(); err != nil {
		groupRows.Close()
		return nil, err
	}
	groupRows.Close()

	tagRows, err := s.db.conn.QueryContext(ctx, `SELECT id, group_id, value, case_sensitive, enabled FROM tags`)
	if err != nil {
		return nil, fmt.Errorf("store: list tags: %w", err)
	}
	defer tagRows.Close()
	var tags []models.Tag
	for tagRows.Next() {
		var t models.Tag
		if err := tagRows.Scan(&t.ID, &t.GroupID, &t.Value, &t.CaseSensitive, &t.Enabled); err != nil {
			return nil, fmt.Errorf("store: scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	return rules.NewTagRegistry(groups, tags), nil
}

// SaveTagGroup inserts a new tag group (ID == 0) or updates an existing one.
func (s *RuleStore) SaveTagGroup(ctx context.Context, g *models.TagGroup) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	if g.ID == 0 {
		res, err := s.db.conn.ExecContext(ctx, `INSERT INTO tag_groups (name, enabled) VALUES (?, ?)`, g.Name, g.Enabled)
		if err != nil {
			return fmt.Errorf("store: insert tag group: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: insert tag group id: %w", err)
		}
		g.ID = int(id)
		return nil
	}
	_, err := s.db.conn.ExecContext(ctx, `UPDATE tag_groups SET name=?, enabled=? WHERE id=?`, g.Name, g.Enabled, g.ID)
	if err != nil {
		return fmt.Errorf("store: update tag group %d: %w", g.ID, err)
	}
	return nil
}

// SaveTag inserts a new tag (ID == 0) or updates an existing one.
func (s *RuleStore) SaveTag(ctx context.Context, t *models.Tag) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	if t.ID == 0 {
		res, err := s.db.conn.ExecContext(ctx,
			`INSERT INTO tags (group_id, value, case_sensitive, enabled) VALUES (?, ?, ?, ?)`,
			t.GroupID, t.Value, t.CaseSensitive, t.Enabled)
		if err != nil {
			return fmt.Errorf("store: insert tag: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: insert tag id: %w", err)
		}
		t.ID = int(id)
		return nil
	}
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE tags SET group_id=?, value=?, case_sensitive=?, enabled=? WHERE id=?`,
		t.GroupID, t.Value, t.CaseSensitive, t.Enabled, t.ID)
	if err != nil {
		return fmt.Errorf("store: update tag %d: %w", t.ID, err)
	}
	return nil
}

// LoadNormalizer reads every normalization_rule_groups/normalization_rules
// row and builds the rules.Normalizer a pipeline run applies to a stream's
// name before condition evaluation when Rule.NormalizeNames is set
// (SPEC_FULL.md supplemented feature 2).
func (s *RuleStore) LoadNormalizer(ctx context.Context, registry *rules.TagRegistry) (*rules.Normalizer, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	groupRows, err := s.db.conn.QueryContext(ctx, `SELECT id, name, enabled, priority FROM normalization_rule_groups ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list normalization rule groups: %w", err)
	}
	var groups []models.NormalizationRuleGroup
	for groupRows.Next() {
		var g models.NormalizationRuleGroup
		if err := groupRows.Scan(&g.ID, &g.Name, &g.Enabled, &g.Priority); err != nil {
			groupRows.Close()
			return nil, fmt.Errorf("store: scan normalization rule group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := groupRows.Err(); err != nil {
		groupRows.Close()
		return nil, err
	}
	groupRows.Close()

	ruleRows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, group_id, name, enabled, priority, condition_type, condition_value, case_sensitive,
			conditions_json, condition_logic, tag_group_id, tag_match_position, action_type, action_value,
			else_action_type, else_action_value
		FROM normalization_rules ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list normalization rules: %w", err)
	}
	defer ruleRows.Close()

	var ruleList []models.NormalizationRule
	for ruleRows.Next() {
		var r models.NormalizationRule
		var conditionsJSON *string
		if err := ruleRows.Scan(&r.ID, &r.GroupID, &r.Name, &r.Enabled, &r.Priority, &r.ConditionType,
			&r.ConditionValue, &r.CaseSensitive, &conditionsJSON, &r.ConditionLogic, &r.TagGroupID,
			&r.TagMatchPosition, &r.ActionType, &r.ActionValue, &r.ElseActionType, &r.ElseActionValue); err != nil {
			return nil, fmt.Errorf("store: scan normalization rule: %w", err)
		}
		if conditionsJSON != nil {
			if err := json.Unmarshal([]byte(*conditionsJSON), &r.Conditions); err != nil {
				return nil, fmt.Errorf("store: decode normalization rule %d conditions: %w", r.ID, err)
			}
		}
		ruleList = append(ruleList, r)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, err
	}

	return rules.NewNormalizer(groups, ruleList, registry), nil
}
