// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/dispatchctl/internal/evaluator"
	"github.com/tomtom215/dispatchctl/internal/executor"
	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/metrics"
	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/rules"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

// Prober is the subset of the stream prober the engine needs for
// probe-on-sort (spec.md §4.3 Pass 1.5): measure a stream that lacks
// cached stats so rules sorting by quality have something to sort on.
type Prober interface {
	Probe(ctx context.Context, stream models.Stream) (models.StreamStats, error)
}

// Engine runs the auto-creation pipeline against the configured upstream.
// One Engine is reused across runs; all per-run state lives in the run
// itself, not on the Engine.
type Engine struct {
	client           upstream.Client
	registry         *rules.TagRegistry
	normalizer       *rules.Normalizer
	evaluator        *evaluator.Evaluator
	prober           Prober
	probeConcurrency int
	pageSize         int
}

// New builds an Engine. prober may be nil — rules with probe_on_sort are
// then sorted using only whatever resolution_height is already cached.
func New(client upstream.Client, registry *rules.TagRegistry, normalizer *rules.Normalizer, prober Prober, probeConcurrency int) *Engine {
	if probeConcurrency <= 0 {
		probeConcurrency = 4
	}
	return &Engine{
		client:           client,
		registry:         registry,
		normalizer:       normalizer,
		evaluator:        evaluator.New(registry),
		prober:           prober,
		probeConcurrency: probeConcurrency,
		pageSize:         200,
	}
}

type ruleMatch struct {
	rule    *models.Rule
	streams []models.Stream
}

// recordLog appends one stream's pipeline trace to the side of the Execution
// that matches its mode: dry runs never touch the upstream, so their trace
// belongs in DryRunResults, not ExecutionLog — spec.md §4.3's "the
// dry_run_results list replaces execution_log".
func recordLog(exec *models.Execution, mode models.ExecutionMode, entry models.ExecutionLogEntry) {
	if mode == models.ModeDryRun {
		exec.DryRunResults = append(exec.DryRunResults, entry)
		return
	}
	exec.ExecutionLog = append(exec.ExecutionLog, entry)
}

// Run executes one full pipeline pass over every enabled rule against a
// fresh snapshot of the upstream's streams, channels, and groups. It
// returns the completed Execution record and the rule set with
// ManagedChannelIDs refreshed to reflect this run — the caller persists
// both.
func (e *Engine) Run(ctx context.Context, ruleSet []models.Rule, mode models.ExecutionMode, triggeredBy string) (*models.Execution, []models.Rule, error) {
	ctx = logging.ContextWithNewRunID(ctx)
	start := time.Now()
	exec := &models.Execution{
		Mode:        mode,
		TriggeredBy: triggeredBy,
		StartedAt:   start,
		Status:      models.StatusRunning,
	}

	channels, groups, streams, streamProviderByID, err := e.loadSnapshot(ctx)
	if err != nil {
		exec.Status = models.StatusFailed
		metrics.PipelineRunsTotal.WithLabelValues(string(mode), "failed").Inc()
		return exec, ruleSet, fmt.Errorf("load snapshot: %w", err)
	}

	sortedRules := make([]models.Rule, len(ruleSet))
	copy(sortedRules, ruleSet)
	sort.SliceStable(sortedRules, func(i, j int) bool { return sortedRules[i].Priority < sortedRules[j].Priority })

	ax := executor.NewActionExecutor(e.client, channels, groups, e.normalizer, e.registry, streamProviderByID)

	// Pass 1 — evaluate every stream against every enabled rule in
	// priority order, without short-circuiting the evaluator itself.
	winners := make(map[int]*models.Rule, len(streams)) // stream id -> winning rule
	groupedByRule := map[int]*ruleMatch{}
	var ruleOrder []int

	for si := range streams {
		stream := streams[si]
		exec.StreamsEvaluated++
		var winner *models.Rule
		var loserIDs []int

		for ri := range sortedRules {
			rule := &sortedRules[ri]
			if !rule.Enabled {
				continue
			}
			res := e.evaluator.Evaluate(stream, *rule)
			if !res.Matched {
				continue
			}
			if winner == nil {
				winner = rule
			} else {
				loserIDs = append(loserIDs, rule.ID)
			}
			if rule.StopOnFirstMatch {
				break
			}
		}

		if winner == nil {
			continue
		}
		exec.StreamsMatched++
		winners[stream.ID] = winner

		if len(loserIDs) > 0 {
			recordLog(exec, mode, models.ExecutionLogEntry{
				StreamID: stream.ID, StreamName: stream.Name, RuleID: winner.ID, Matched: true,
				Conflict: &models.Conflict{
					StreamID: stream.ID, StreamName: stream.Name,
					WinningRuleID: winner.ID, LosingRuleIDs: loserIDs,
					ConflictType: models.ConflictPriorityOverride,
					Resolution:   "first matching rule by priority order wins",
					Description:  fmt.Sprintf("stream %q matched %d rules; rule %d (priority %d) won", stream.Name, len(loserIDs)+1, winner.ID, winner.Priority),
				},
			})
			metrics.PipelineConflictsTotal.WithLabelValues(string(models.ConflictPriorityOverride)).Inc()
		}

		grp, ok := groupedByRule[winner.ID]
		if !ok {
			grp = &ruleMatch{rule: winner}
			groupedByRule[winner.ID] = grp
			ruleOrder = append(ruleOrder, winner.ID)
		}
		grp.streams = append(grp.streams, stream)
	}
	sort.SliceStable(ruleOrder, func(i, j int) bool {
		return groupedByRule[ruleOrder[i]].rule.Priority < groupedByRule[ruleOrder[j]].rule.Priority
	})

	// Pass 1.5 — probe streams that will be sorted by quality but have no
	// cached resolution yet.
	if e.prober != nil {
		e.probeForSort(ctx, groupedByRule)
	}

	// Sort each rule's matched streams by its configured sort field.
	for _, ruleID := range ruleOrder {
		grp := groupedByRule[ruleID]
		if grp.rule.SortField == "quality" {
			sortStreamsByQuality(grp.streams, grp.rule.SortOrder)
		}
	}

	// Pass 2 — execute the winning rule's actions for every matched stream,
	// in rule-priority order, then stream order within each rule.
	ruleManagedChannels := map[int]map[int]bool{}

	for _, ruleID := range ruleOrder {
		grp := groupedByRule[ruleID]
		rule := grp.rule
		managed := map[int]bool{}
		ruleManagedChannels[rule.ID] = managed

		for _, stream := range grp.streams {
			execCtx := executor.NewExecutionContext(mode == models.ModeDryRun)
			tmpl := buildTemplate(stream)
			var results []models.ActionResult
			stopped := false

			for _, action := range rule.Actions {
				res := ax.Execute(ctx, action, stream, execCtx, tmpl)
				results = append(results, res)
				e.tally(exec, res)
				if action.Type == models.ActionStopProcessing {
					stopped = true
				}
				if stopped {
					break
				}
			}

			if execCtx.CurrentChannelID > 0 {
				managed[execCtx.CurrentChannelID] = true
			}

			recordLog(exec, mode, models.ExecutionLogEntry{
				StreamID: stream.ID, StreamName: stream.Name, RuleID: rule.ID, Matched: true, Actions: results,
			})
		}
	}

	// Pass 3 — renumber each sort-field rule's produced channels in sorted
	// order, preserving the lowest number already in use as the block start.
	for _, ruleID := range ruleOrder {
		grp := groupedByRule[ruleID]
		if grp.rule.SortField != "quality" || mode == models.ModeDryRun {
			continue
		}
		ids := orderedChannelIDs(grp.streams, ax)
		if len(ids) < 2 {
			continue
		}
		starting := lowestChannelNumber(ids, channels)
		if err := e.client.AssignChannelNumbers(ctx, ids, starting); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("rule_id", grp.rule.ID).Msg("pass 3 renumber failed")
		}
	}

	// Pass 3.5 — reorder streams within any channel a sort-field rule
	// touched this run.
	streamByID := make(map[int]models.Stream, len(streams))
	for _, s := range streams {
		streamByID[s.ID] = s
	}
	for _, ruleID := range ruleOrder {
		grp := groupedByRule[ruleID]
		if grp.rule.SortField != "quality" || mode == models.ModeDryRun {
			continue
		}
		for chID := range ruleManagedChannels[grp.rule.ID] {
			e.reorderChannelStreams(ctx, chID, channels, streamByID, grp.rule.SortOrder)
		}
	}

	// Pass 4 — reconcile orphans per rule against its previous managed set.
	channelByIDSnapshot := make(map[int]models.Channel, len(channels))
	for _, c := range channels {
		channelByIDSnapshot[c.ID] = c
	}
	remainingChannels := append([]models.Channel{}, channels...)
	affectedGroups := map[int]bool{}
	anyOrphanRemoved := false

	updatedRules := make([]models.Rule, len(ruleSet))
	copy(updatedRules, ruleSet)
	for i := range updatedRules {
		rule := &updatedRules[i]
		managed := ruleManagedChannels[rule.ID]
		if mode == models.ModeDryRun || (managed == nil && !rule.Enabled) {
			continue // a dry run or a disabled rule leaves the managed set untouched
		}
		if managed == nil {
			managed = map[int]bool{} // no matches this run: every previously managed channel is an orphan
		}
		newIDs := setToSortedSlice(managed)

		if rule.ManagedChannelIDs != nil && mode != models.ModeDryRun {
			orphans := difference(rule.ManagedChannelIDs, managed)
			for _, chID := range orphans {
				var res models.ActionResult
				switch rule.OrphanAction {
				case models.OrphanMoveUncategorized:
					res = ax.MoveChannelToUncategorized(ctx, chID)
				case models.OrphanDelete, models.OrphanDeleteAndCleanupGroups:
					if rule.OrphanAction == models.OrphanDeleteAndCleanupGroups {
						if ch, ok := channelByIDSnapshot[chID]; ok && ch.GroupID != nil {
							affectedGroups[*ch.GroupID] = true
						}
					}
					res = ax.RemoveChannel(ctx, chID)
				default:
					continue
				}
				e.tally(exec, res)
				recordLog(exec, mode, models.ExecutionLogEntry{
					RuleID: rule.ID, Matched: false,
					Actions: []models.ActionResult{res},
				})
				if res.Success && !res.Created && !res.Modified {
					anyOrphanRemoved = true
					remainingChannels = removeChannelByID(remainingChannels, chID)
				}
			}
		}
		rule.ManagedChannelIDs = newIDs
	}

	// Delete any group an OrphanDeleteAndCleanupGroups rule left empty.
	for groupID := range affectedGroups {
		res := ax.DeleteGroupIfEmpty(ctx, groupID, remainingChannels)
		e.tally(exec, res)
		recordLog(exec, mode, models.ExecutionLogEntry{Actions: []models.ActionResult{res}})
	}

	// Close channel-number gaps left by this run's deletions.
	if anyOrphanRemoved && mode != models.ModeDryRun {
		ids := channelNumberOrder(remainingChannels)
		if len(ids) >= 2 {
			if err := e.client.AssignChannelNumbers(ctx, ids, 1); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Msg("pass 4 gap-closing renumber failed")
			}
		}
	}

	completedAt := time.Now()
	exec.CompletedAt = &completedAt
	exec.Status = models.StatusCompleted
	metrics.PipelineRunsTotal.WithLabelValues(string(mode), "completed").Inc()
	metrics.PipelineRunDuration.WithLabelValues(string(mode)).Observe(completedAt.Sub(start).Seconds())
	metrics.PipelineStreamsEvaluated.WithLabelValues(string(mode)).Add(float64(exec.StreamsEvaluated))
	metrics.PipelineStreamsMatched.WithLabelValues(string(mode)).Add(float64(exec.StreamsMatched))

	return exec, updatedRules, nil
}

func (e *Engine) tally(exec *models.Execution, res models.ActionResult) {
	switch {
	case res.Created && res.EntityType == "channel":
		exec.ChannelsCreated++
		exec.CreatedEntities = append(exec.CreatedEntities, models.EntityRef{Kind: models.EntityChannel, ID: res.EntityID, Name: res.EntityName})
	case res.Created && res.EntityType == "group":
		exec.GroupsCreated++
		exec.CreatedEntities = append(exec.CreatedEntities, models.EntityRef{Kind: models.EntityGroup, ID: res.EntityID, Name: res.EntityName})
	case res.Modified && res.ActionType == models.ActionMergeStreams:
		exec.StreamsMerged++
		exec.ModifiedEntities = append(exec.ModifiedEntities, models.EntityRef{Kind: models.EntityChannel, ID: res.EntityID, Name: res.EntityName, PreviousState: res.PreviousState})
	case res.Modified:
		exec.ChannelsUpdated++
		exec.ModifiedEntities = append(exec.ModifiedEntities, models.EntityRef{Kind: models.EntityChannel, ID: res.EntityID, Name: res.EntityName, PreviousState: res.PreviousState})
	case res.Skipped:
		exec.StreamsSkipped++
	}
}

func buildTemplate(stream models.Stream) map[string]string {
	return map[string]string{
		"stream_name":     stream.Name,
		"stream_group":    stream.GroupName,
		"tvg_id":          stream.TVGID,
		"tvg_name":        stream.TVGName,
		"provider":        stream.ProviderName,
		"normalized_name": stream.NormalizedName,
	}
}

func sortStreamsByQuality(streams []models.Stream, order models.SortOrder) {
	sort.SliceStable(streams, func(i, j int) bool {
		if order == models.SortDescending {
			return streams[i].ResolutionHeight > streams[j].ResolutionHeight
		}
		return streams[i].ResolutionHeight < streams[j].ResolutionHeight
	})
}

func removeChannelByID(channels []models.Channel, id int) []models.Channel {
	for i, c := range channels {
		if c.ID == id {
			return append(channels[:i], channels[i+1:]...)
		}
	}
	return channels
}

// channelNumberOrder returns the ids of every numbered channel, sorted by
// its current channel number, so AssignChannelNumbers can re-pack them
// starting at 1 with no gaps.
func channelNumberOrder(channels []models.Channel) []int {
	numbered := make([]models.Channel, 0, len(channels))
	for _, c := range channels {
		if c.ChannelNumber > 0 {
			numbered = append(numbered, c)
		}
	}
	sort.SliceStable(numbered, func(i, j int) bool { return numbered[i].ChannelNumber < numbered[j].ChannelNumber })
	ids := make([]int, len(numbered))
	for i, c := range numbered {
		ids[i] = c.ID
	}
	return ids
}

func setToSortedSlice(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func difference(previous []int, current map[int]bool) []int {
	var out []int
	for _, id := range previous {
		if !current[id] {
			out = append(out, id)
		}
	}
	return out
}
