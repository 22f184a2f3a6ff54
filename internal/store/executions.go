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

// SaveExecution inserts a new Execution (ID == 0) or updates an existing
// one — a pipeline run inserts once at start and updates once at
// completion/rollback.
func (s *RuleStore) SaveExecution(ctx context.Context, e *models.Execution) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	createdJSON, err := json.Marshal(e.CreatedEntities)
	if err != nil {
		return fmt.Errorf("store: encode created entities: %w", err)
	}
	modifiedJSON, err := json.Marshal(e.ModifiedEntities)
	if err != nil {
		return fmt.Errorf("store: encode modified entities: %w", err)
	}
	execLogJSON, err := json.Marshal(e.ExecutionLog)
	if err != nil {
		return fmt.Errorf("store: encode execution log: %w", err)
	}
	dryRunJSON, err := json.Marshal(e.DryRunResults)
	if err != nil {
		return fmt.Errorf("store: encode dry run results: %w", err)
	}

	if e.ID == 0 {
		res, err := s.db.conn.ExecContext(ctx, `
			INSERT INTO executions (mode, triggered_by, started_at, completed_at, status, streams_evaluated,
				streams_matched, channels_created, channels_updated, groups_created, streams_merged,
				streams_skipped, created_entities_json, modified_entities_json, execution_log_json,
				dry_run_results_json, rolled_back_at, rolled_back_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Mode, e.TriggeredBy, e.StartedAt, e.CompletedAt, e.Status, e.StreamsEvaluated,
			e.StreamsMatched, e.ChannelsCreated, e.ChannelsUpdated, e.GroupsCreated, e.StreamsMerged,
			e.StreamsSkipped, string(createdJSON), string(modifiedJSON), string(execLogJSON),
			string(dryRunJSON), e.RolledBackAt, e.RolledBackBy)
		if err != nil {
			return fmt.Errorf("store: insert execution: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: insert execution id: %w", err)
		}
		e.ID = int(id)
		return nil
	}

	_, err = s.db.conn.ExecContext(ctx, `
		UPDATE executions SET mode=?, triggered_by=?, started_at=?, completed_at=?, status=?,
			streams_evaluated=?, streams_matched=?, channels_created=?, channels_updated=?, groups_created=?,
			streams_merged=?, streams_skipped=?, created_entities_json=?, modified_entities_json=?,
			execution_log_json=?, dry_run_results_json=?, rolled_back_at=?, rolled_back_by=?
		WHERE id=?`,
		e.Mode, e.TriggeredBy, e.StartedAt, e.CompletedAt, e.Status, e.StreamsEvaluated,
		e.StreamsMatched, e.ChannelsCreated, e.ChannelsUpdated, e.GroupsCreated, e.StreamsMerged,
		e.StreamsSkipped, string(createdJSON), string(modifiedJSON), string(execLogJSON),
		string(dryRunJSON), e.RolledBackAt, e.RolledBackBy, e.ID)
	if err != nil {
		return fmt.Errorf("store: update execution %d: %w", e.ID, err)
	}
	return nil
}

// GetExecution returns one execution by id, or ErrNotFound.
func (s *RuleStore) GetExecution(ctx context.Context, id int) (models.Execution, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	row := s.db.conn.QueryRowContext(ctx, executionSelectColumns+` FROM executions WHERE id = ?`, id)
	e, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return models.Execution{}, ErrNotFound
	}
	if err != nil {
		return models.Execution{}, fmt.Errorf("store: get execution %d: %w", id, err)
	}
	return e, nil
}

// ListExecutions returns executions newest-first, bounded to limit rows
// (0 means unbounded).
func (s *RuleStore) ListExecutions(ctx context.Context, limit int) ([]models.Execution, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	query := executionSelectColumns + ` FROM executions ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list executions: %w", err)
	}
	defer rows.Close()

	var out []models.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const executionSelectColumns = `SELECT id, mode, triggered_by, started_at, completed_at, status,
	streams_evaluated, streams_matched, channels_created, channels_updated, groups_created,
	streams_merged, streams_skipped, created_entities_json, modified_entities_json, execution_log_json,
	dry_run_results_json, rolled_back_at, rolled_back_by`

func scanExecution(row rowScanner) (models.Execution, error) {
	var e models.Execution
	var completedAt, rolledBackAt sql.NullTime
	var rolledBackBy sql.NullString
	var createdJSON, modifiedJSON, execLogJSON, dryRunJSON string

	if err := row.Scan(&e.ID, &e.Mode, &e.TriggeredBy, &e.StartedAt, &completedAt, &e.Status,
		&e.StreamsEvaluated, &e.StreamsMatched, &e.ChannelsCreated, &e.ChannelsUpdated, &e.GroupsCreated,
		&e.StreamsMerged, &e.StreamsSkipped, &createdJSON, &modifiedJSON, &execLogJSON, &dryRunJSON,
		&rolledBackAt, &rolledBackBy); err != nil {
		return models.Execution{}, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		e.CompletedAt = &t
	}
	if rolledBackAt.Valid {
		t := rolledBackAt.Time
		e.RolledBackAt = &t
	}
	e.RolledBackBy = rolledBackBy.String

	if err := json.Unmarshal([]byte(createdJSON), &e.CreatedEntities); err != nil {
		return models.Execution{}, fmt.Errorf("store: decode execution %d created entities: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(modifiedJSON), &e.ModifiedEntities); err != nil {
		return models.Execution{}, fmt.Errorf("store: decode execution %d modified entities: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(execLogJSON), &e.ExecutionLog); err != nil {
		return models.Execution{}, fmt.Errorf("store: decode execution %d execution log: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(dryRunJSON), &e.DryRunResults); err != nil {
		return models.Execution{}, fmt.Errorf("store: decode execution %d dry run results: %w", e.ID, err)
	}
	return e, nil
}

// SaveConflicts appends every conflict recorded by one execution. Conflicts
// are write-once — an execution never updates a previously recorded
// conflict (spec.md §4.3: "conflicts are recorded, not resolved").
func (s *RuleStore) SaveConflicts(ctx context.Context, conflicts []models.Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin conflicts tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conflicts (execution_id, stream_id, stream_name, winning_rule_id, losing_rule_ids_json,
			conflict_type, resolution, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare conflict insert: %w", err)
	}
	defer closeQuietly(stmt)

	for _, c := range conflicts {
		losingJSON, err := json.Marshal(c.LosingRuleIDs)
		if err != nil {
			return fmt.Errorf("store: encode losing rule ids: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.ExecutionID, c.StreamID, c.StreamName, c.WinningRuleID,
			string(losingJSON), c.ConflictType, c.Resolution, c.Description); err != nil {
			return fmt.Errorf("store: insert conflict: %w", err)
		}
	}
	return tx.Commit()
}

// ListConflicts returns every conflict recorded for one execution.
func (s *RuleStore) ListConflicts(ctx context.Context, executionID int) ([]models.Conflict, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT execution_id, stream_id, stream_name, winning_rule_id, losing_rule_ids_json, conflict_type,
			resolution, description
		FROM conflicts WHERE execution_id = ? ORDER BY id ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("store: list conflicts for execution %d: %w", executionID, err)
	}
	defer rows.Close()

	var out []models.Conflict
	for rows.Next() {
		var c models.Conflict
		var losingJSON string
		if err := rows.Scan(&c.ExecutionID, &c.StreamID, &c.StreamName, &c.WinningRuleID, &losingJSON,
			&c.ConflictType, &c.Resolution, &c.Description); err != nil {
			return nil, fmt.Errorf("store: scan conflict: %w", err)
		}
		if err := json.Unmarshal([]byte(losingJSON), &c.LosingRuleIDs); err != nil {
			return nil, fmt.Errorf("store: decode losing rule ids: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
