// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package evaluator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/rules"
)

// Result is the outcome of evaluating one (stream, rule) pair: whether the
// rule matched overall, and the complete per-condition trace.
type Result struct {
	Matched bool
	Log     []models.ConditionLogEntry
}

// Evaluator tests streams against rules. TagRegistry resolves tag_in
// conditions; it may be nil if no rule in the run uses tag_in.
type Evaluator struct {
	tagRegistry *rules.TagRegistry
}

// New builds an Evaluator. registry may be nil when no configured rule
// uses a tag_in condition.
func New(registry *rules.TagRegistry) *Evaluator {
	return &Evaluator{tagRegistry: registry}
}

// Evaluate tests stream against rule's full condition list without
// short-circuiting. Conditions are grouped into AND-groups that split on
// every "or" Connector (the first condition's Connector is ignored — it
// always starts the first group); the rule matches when at least one
// AND-group has every condition in it match.
func (e *Evaluator) Evaluate(stream models.Stream, rule models.Rule) Result {
	var log []models.ConditionLogEntry
	var groups [][]bool

	current := []bool{}
	for i, cond := range rule.Conditions {
		if i > 0 && cond.Connector == models.ConnectorOr {
			groups = append(groups, current)
			current = []bool{}
		}

		matched, details := e.evaluateCondition(stream, cond)
		if cond.Negate {
			matched = !matched
		}
		current = append(current, matched)

		log = append(log, models.ConditionLogEntry{
			Type:      cond.Type,
			Value:     cond.Value,
			Matched:   matched,
			Details:   details,
			Connector: cond.Connector,
		})
	}
	groups = append(groups, current)

	overall := false
	for _, group := range groups {
		if allTrue(group) {
			overall = true
			break
		}
	}

	return Result{Matched: overall, Log: log}
}

func allTrue(bs []bool) bool {
	if len(bs) == 0 {
		return false
	}
	for _, b := range bs {
		if !b {
			return false
		}
	}
	return true
}

// evaluateCondition tests a single condition and returns whether it
// matched plus a short human-readable explanation for the trace log. A
// condition that errors (e.g. invalid regex) is logged matched=false and
// evaluation continues with the rest of the rule (spec.md §7).
func (e *Evaluator) evaluateCondition(stream models.Stream, cond models.Condition) (bool, string) {
	switch cond.Type {
	case models.ConditionAlways:
		return true, "always matches"

	case models.ConditionNameContains:
		if strings.Contains(strings.ToLower(stream.Name), strings.ToLower(cond.Value)) {
			return true, fmt.Sprintf("name contains %q", cond.Value)
		}
		return false, fmt.Sprintf("name does not contain %q", cond.Value)

	case models.ConditionNameRegex:
		re, err := regexp.Compile(cond.Value)
		if err != nil {
			return false, fmt.Sprintf("invalid regex %q: %v", cond.Value, err)
		}
		if re.MatchString(stream.Name) {
			return true, fmt.Sprintf("name matches /%s/", cond.Value)
		}
		return false, fmt.Sprintf("name does not match /%s/", cond.Value)

	case models.ConditionGroupEquals:
		if strings.EqualFold(stream.GroupName, cond.Value) {
			return true, fmt.Sprintf("group equals %q", cond.Value)
		}
		return false, fmt.Sprintf("group %q != %q", stream.GroupName, cond.Value)

	case models.ConditionTagIn:
		if e.tagRegistry == nil {
			return false, "no tag registry configured"
		}
		groupIDs, err := parseIntList(cond.Value)
		if err != nil {
			return false, fmt.Sprintf("invalid tag group list %q: %v", cond.Value, err)
		}
		name := stream.NormalizedName
		if name == "" {
			name = stream.Name
		}
		if e.tagRegistry.MatchAnyTagGroup(name, groupIDs, models.TagPositionContains) {
			return true, "matched a tag in the configured tag group(s)"
		}
		return false, "no tag in the configured tag group(s) matched"

	case models.ConditionTVGPresent:
		if stream.TVGID != "" {
			return true, "tvg_id present"
		}
		return false, "tvg_id absent"

	case models.ConditionResolutionGE:
		threshold, err := strconv.Atoi(cond.Value)
		if err != nil {
			return false, fmt.Sprintf("invalid resolution threshold %q: %v", cond.Value, err)
		}
		if stream.ResolutionHeight >= threshold {
			return true, fmt.Sprintf("resolution_height %d >= %d", stream.ResolutionHeight, threshold)
		}
		return false, fmt.Sprintf("resolution_height %d < %d", stream.ResolutionHeight, threshold)

	default:
		return false, fmt.Sprintf("unknown condition type %q", cond.Type)
	}
}

func parseIntList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
