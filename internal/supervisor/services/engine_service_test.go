// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/dispatchctl/internal/models"
)

type mockRuleLister struct {
	rules   []models.Rule
	listErr error
	saved   []models.Rule
}

func (m *mockRuleLister) ListEnabledRules(context.Context) ([]models.Rule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.rules, nil
}

func (m *mockRuleLister) SaveRule(_ context.Context, r *models.Rule) error {
	m.saved = append(m.saved, *r)
	return nil
}

type mockExecutionRecorder struct {
	savedExec      *models.Execution
	saveExecErr    error
	savedConflicts []models.Conflict
	saveConflictsErr error
}

func (m *mockExecutionRecorder) SaveExecution(_ context.Context, e *models.Execution) error {
	if m.saveExecErr != nil {
		return m.saveExecErr
	}
	e.ID = 42
	m.savedExec = e
	return nil
}

func (m *mockExecutionRecorder) SaveConflicts(_ context.Context, conflicts []models.Conflict) error {
	m.savedConflicts = conflicts
	return m.saveConflictsErr
}

type mockAutoCreationRunner struct {
	exec         *models.Execution
	updatedRules []models.Rule
	err          error
	gotMode      models.ExecutionMode
	gotTriggeredBy string
}

func (m *mockAutoCreationRunner) Run(_ context.Context, _ []models.Rule, mode models.ExecutionMode, triggeredBy string) (*models.Execution, []models.Rule, error) {
	m.gotMode = mode
	m.gotTriggeredBy = triggeredBy
	return m.exec, m.updatedRules, m.err
}

func TestEngineTriggerServiceImplementsSutureService(t *testing.T) {
	var _ suture.Service = (*EngineTriggerService)(nil)
}

func TestNewEngineTriggerServiceDefaultInterval(t *testing.T) {
	svc := NewEngineTriggerService(&mockAutoCreationRunner{}, &mockRuleLister{}, &mockExecutionRecorder{}, 0)
	if svc.interval != defaultEngineTriggerInterval {
		t.Errorf("interval = %v, want default %v", svc.interval, defaultEngineTriggerInterval)
	}
}

func TestEngineTriggerServiceRunOnceSkipsWhenNoEnabledRules(t *testing.T) {
	engine := &mockAutoCreationRunner{}
	rules := &mockRuleLister{}
	execs := &mockExecutionRecorder{}
	svc := NewEngineTriggerService(engine, rules, execs, time.Hour)

	svc.runOnce(context.Background())

	if execs.savedExec != nil {
		t.Error("SaveExecution called with no enabled rules")
	}
}

func TestEngineTriggerServiceRunOncePersistsExecutionAndConflicts(t *testing.T) {
	conflict := &models.Conflict{StreamID: 7, WinningRuleID: 1}
	engine := &mockAutoCreationRunner{
		exec: &models.Execution{
			Mode: models.ModeExecute,
			ExecutionLog: []models.ExecutionLogEntry{
				{StreamID: 7, RuleID: 1, Matched: true, Conflict: conflict},
				{StreamID: 8, RuleID: 2, Matched: true},
			},
		},
		updatedRules: []models.Rule{{ID: 1, ManagedChannelIDs: []int{100}}},
	}
	rules := &mockRuleLister{rules: []models.Rule{{ID: 1}, {ID: 2}}}
	execs := &mockExecutionRecorder{}
	svc := NewEngineTriggerService(engine, rules, execs, time.Hour)

	svc.runOnce(context.Background())

	if engine.gotMode != models.ModeExecute {
		t.Errorf("Run called with mode %q, want %q", engine.gotMode, models.ModeExecute)
	}
	if engine.gotTriggeredBy != "scheduler" {
		t.Errorf("Run called with triggeredBy %q, want %q", engine.gotTriggeredBy, "scheduler")
	}
	if execs.savedExec == nil {
		t.Fatal("SaveExecution was not called")
	}
	if len(rules.saved) != 1 || rules.saved[0].ID != 1 {
		t.Errorf("SaveRule calls = %+v, want one call for rule 1", rules.saved)
	}
	if len(execs.savedConflicts) != 1 {
		t.Fatalf("SaveConflicts got %d conflicts, want 1", len(execs.savedConflicts))
	}
	if execs.savedConflicts[0].ExecutionID != 42 {
		t.Errorf("conflict ExecutionID = %d, want 42 (stamped from saved execution)", execs.savedConflicts[0].ExecutionID)
	}
}

func TestEngineTriggerServiceRunOnceStopsOnListError(t *testing.T) {
	engine := &mockAutoCreationRunner{}
	rules := &mockRuleLister{listErr: errors.New("db unavailable")}
	execs := &mockExecutionRecorder{}
	svc := NewEngineTriggerService(engine, rules, execs, time.Hour)

	svc.runOnce(context.Background())

	if execs.savedExec != nil {
		t.Error("SaveExecution called despite rule-list failure")
	}
}

func TestEngineTriggerServiceString(t *testing.T) {
	svc := NewEngineTriggerService(&mockAutoCreationRunner{}, &mockRuleLister{}, &mockExecutionRecorder{}, time.Hour)
	if got := svc.String(); got != "engine-trigger" {
		t.Errorf("String() = %q, want %q", got, "engine-trigger")
	}
}
