// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package services

import (
	"context"
	"time"

	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/models"
)

const defaultEngineTriggerInterval = time.Hour

// RuleLister is the subset of store.RuleStore the scheduled trigger needs to
// load the enabled rule set before each pass.
type RuleLister interface {
	ListEnabledRules(ctx context.Context) ([]models.Rule, error)
	SaveRule(ctx context.Context, r *models.Rule) error
}

// ExecutionRecorder is the subset of store.RuleStore the scheduled trigger
// needs to persist the outcome of each pass.
type ExecutionRecorder interface {
	SaveExecution(ctx context.Context, e *models.Execution) error
	SaveConflicts(ctx context.Context, conflicts []models.Conflict) error
}

// AutoCreationRunner is the subset of *engine.Engine the scheduled trigger
// invokes each tick.
type AutoCreationRunner interface {
	Run(ctx context.Context, ruleSet []models.Rule, mode models.ExecutionMode, triggeredBy string) (*models.Execution, []models.Rule, error)
}

// EngineTriggerService runs the auto-creation pipeline on a fixed schedule,
// grounded on the same ticker-driven Serve shape internal/prober.Serve and
// internal/bandwidth.Tracker.Serve use. A webhook or admin call can drive an
// out-of-band run directly through AutoCreationRunner without going through
// this scheduled loop.
type EngineTriggerService struct {
	engine   AutoCreationRunner
	rules    RuleLister
	execs    ExecutionRecorder
	interval time.Duration
}

func NewEngineTriggerService(engine AutoCreationRunner, rules RuleLister, execs ExecutionRecorder, interval time.Duration) *EngineTriggerService {
	if interval <= 0 {
		interval = defaultEngineTriggerInterval
	}
	return &EngineTriggerService{engine: engine, rules: rules, execs: execs, interval: interval}
}

// Serve implements suture.Service.
func (s *EngineTriggerService) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", s.interval).Msg("starting auto-creation engine trigger loop")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *EngineTriggerService) runOnce(ctx context.Context) {
	ruleSet, err := s.rules.ListEnabledRules(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("engine trigger: failed to load enabled rules")
		return
	}
	if len(ruleSet) == 0 {
		return
	}

	exec, updatedRules, err := s.engine.Run(ctx, ruleSet, models.ModeExecute, "scheduler")
	if err != nil {
		logging.Warn().Err(err).Msg("engine trigger: run failed")
		return
	}

	for i := range updatedRules {
		if err := s.rules.SaveRule(ctx, &updatedRules[i]); err != nil {
			logging.Warn().Err(err).Int("rule_id", updatedRules[i].ID).Msg("engine trigger: failed to persist updated rule")
		}
	}

	if err := s.execs.SaveExecution(ctx, exec); err != nil {
		logging.Warn().Err(err).Msg("engine trigger: failed to persist execution")
		return
	}

	var conflicts []models.Conflict
	for _, entry := range exec.ExecutionLog {
		if entry.Conflict == nil {
			continue
		}
		c := *entry.Conflict
		c.ExecutionID = exec.ID
		conflicts = append(conflicts, c)
	}
	if err := s.execs.SaveConflicts(ctx, conflicts); err != nil {
		logging.Warn().Err(err).Int("execution_id", exec.ID).Msg("engine trigger: failed to persist conflicts")
	}
}

func (s *EngineTriggerService) String() string { return "engine-trigger" }
