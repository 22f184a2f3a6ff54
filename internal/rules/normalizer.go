// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package rules

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/models"
)

// conditionMatch describes where in the text a condition matched, mirroring
// what the action step needs to apply a transformation at the right
// offsets.
type conditionMatch struct {
	matched    bool
	start, end int
}

// Normalizer applies an ordered sequence of NormalizationRuleGroups (each
// itself an ordered sequence of NormalizationRules) to a raw stream name,
// producing the NormalizedName the rest of the pipeline matches and sorts
// on. Groups run in Priority order; within a group, rules run in Priority
// order; a rule with ActionType=strip_prefix/strip_suffix/remove/replace/
// regex_replace/normalize_prefix mutates the running text in place and
// processing continues to the next rule.
type Normalizer struct {
	groups   []models.NormalizationRuleGroup
	rules    map[int][]models.NormalizationRule // group id -> rules, priority sorted
	registry *TagRegistry
}

// NewNormalizer builds a Normalizer from the enabled groups/rules loaded
// for a pipeline run, sorting both by Priority up front.
func NewNormalizer(groups []models.NormalizationRuleGroup, ruleList []models.NormalizationRule, registry *TagRegistry) *Normalizer {
	enabledGroups := make([]models.NormalizationRuleGroup, 0, len(groups))
	for _, g := range groups {
		if g.Enabled {
			enabledGroups = append(enabledGroups, g)
		}
	}
	sort.Slice(enabledGroups, func(i, j int) bool { return enabledGroups[i].Priority < enabledGroups[j].Priority })

	byGroup := make(map[int][]models.NormalizationRule)
	for _, r := range ruleList {
		if !r.Enabled {
			continue
		}
		byGroup[r.GroupID] = append(byGroup[r.GroupID], r)
	}
	for id := range byGroup {
		sort.Slice(byGroup[id], func(i, j int) bool { return byGroup[id][i].Priority < byGroup[id][j].Priority })
	}

	return &Normalizer{groups: enabledGroups, rules: byGroup, registry: registry}
}

// Normalize applies every enabled group/rule to name in priority order and
// returns the resulting normalized text. The input is never mutated.
func (n *Normalizer) Normalize(name string) string {
	text := name
	for _, group := range n.groups {
		for _, rule := range n.rules[group.ID] {
			text = n.applyRule(text, rule)
		}
	}
	return text
}

func (n *Normalizer) applyRule(text string, rule models.NormalizationRule) string {
	match := n.matchCondition(text, rule)
	if match.matched {
		return applyAction(text, rule, match)
	}
	return applyElseAction(text, rule)
}

func (n *Normalizer) matchCondition(text string, rule models.NormalizationRule) conditionMatch {
	if len(rule.Conditions) > 0 {
		return n.matchCompound(text, rule.Conditions, rule.ConditionLogic)
	}
	if rule.ConditionType == models.NormalizeTagGroup {
		if rule.TagGroupID == 0 || n.registry == nil {
			return conditionMatch{}
		}
		position := rule.TagMatchPosition
		if position == "" {
			position = models.TagPositionContains
		}
		matched, tag := n.registry.MatchTagGroup(text, rule.TagGroupID, position)
		if !matched {
			return conditionMatch{}
		}
		return locateSubstring(text, tag, rule.CaseSensitive)
	}
	return matchSingleCondition(text, rule.ConditionType, rule.ConditionValue, rule.CaseSensitive)
}

func (n *Normalizer) matchCompound(text string, conditions []models.NormalizeCondition, logic string) conditionMatch {
	var primary conditionMatch
	havePrimary := false
	all := true
	any := false
	for _, cond := range conditions {
		m := matchSingleCondition(text, cond.Type, cond.Value, cond.CaseSensitive)
		matched := m.matched
		if cond.Negate {
			matched = !matched
		}
		if matched {
			any = true
		} else {
			all = false
		}
		if !havePrimary && m.matched && !cond.Negate {
			primary = m
			havePrimary = true
		}
	}

	finalMatch := all
	if strings.EqualFold(logic, "OR") {
		finalMatch = any
	}
	if !finalMatch {
		return conditionMatch{}
	}
	if havePrimary {
		return primary
	}
	return conditionMatch{matched: true, start: 0, end: len(text)}
}

func matchSingleCondition(text string, condType models.NormalizeConditionType, pattern string, caseSensitive bool) conditionMatch {
	pattern = convertSuperscripts(pattern)
	matchText, matchPattern := text, pattern
	if !caseSensitive {
		matchText = strings.ToLower(matchText)
		matchPattern = strings.ToLower(matchPattern)
	}

	switch condType {
	case models.NormalizeAlways:
		return conditionMatch{matched: true, start: 0, end: len(text)}

	case models.NormalizeContains:
		if idx := strings.Index(matchText, matchPattern); idx >= 0 {
			return conditionMatch{matched: true, start: idx, end: idx + len(pattern)}
		}

	case models.NormalizeStartsWith:
		if strings.HasPrefix(matchText, matchPattern) {
			rest := matchText[len(matchPattern):]
			if rest != "" && separatorRE.MatchString(rest[:1]) {
				return conditionMatch{matched: true, start: 0, end: len(pattern)}
			}
		}

	case models.NormalizeEndsWith:
		if strings.HasSuffix(matchText, matchPattern) {
			prefixLen := len(matchText) - len(matchPattern)
			if prefixLen > 0 && separatorRE.MatchString(text[prefixLen-1:prefixLen]) {
				return conditionMatch{matched: true, start: prefixLen, end: len(text)}
			}
		}

	case models.NormalizeRegex:
		flags := "(?i)"
		if caseSensitive {
			flags = ""
		}
		re, err := regexp.Compile(flags + pattern)
		if err != nil {
			logging.Warn().Err(err).Str("pattern", pattern).Msg("invalid normalization regex pattern")
			return conditionMatch{}
		}
		if loc := re.FindStringIndex(text); loc != nil {
			return conditionMatch{matched: true, start: loc[0], end: loc[1]}
		}

	default:
		logging.Warn().Str("condition_type", string(condType)).Msg("unknown normalization condition type")
	}
	return conditionMatch{}
}

func locateSubstring(text, substr string, caseSensitive bool) conditionMatch {
	matchText, matchSub := text, substr
	if !caseSensitive {
		matchText = strings.ToLower(matchText)
		matchSub = strings.ToLower(matchSub)
	}
	idx := strings.Index(matchText, matchSub)
	if idx < 0 {
		return conditionMatch{}
	}
	return conditionMatch{matched: true, start: idx, end: idx + len(substr)}
}

var trimSeparators = " \t\n\r:-|/"

func applyAction(text string, rule models.NormalizationRule, m conditionMatch) string {
	switch rule.ActionType {
	case models.NormalizeActionRemove:
		return text[:m.start] + text[m.end:]

	case models.NormalizeActionReplace:
		return text[:m.start] + rule.ActionValue + text[m.end:]

	case models.NormalizeActionRegexReplace:
		if rule.ConditionType != models.NormalizeRegex {
			logging.Warn().Int("rule_id", rule.ID).Msg("regex_replace requires a regex condition")
			return text
		}
		flags := "(?i)"
		if rule.CaseSensitive {
			flags = ""
		}
		re, err := regexp.Compile(flags + rule.ConditionValue)
		if err != nil {
			logging.Warn().Err(err).Int("rule_id", rule.ID).Msg("regex replace error")
			return text
		}
		return re.ReplaceAllString(text, rule.ActionValue)

	case models.NormalizeActionStripPrefix:
		if m.start != 0 {
			return text
		}
		rest := strings.TrimLeft(text[m.end:], trimSeparators)
		return strings.TrimSpace(rest)

	case models.NormalizeActionStripSuffix:
		if m.end != len(text) && m.end != len(strings.TrimRight(text, " ")) {
			return text
		}
		rest := strings.TrimRight(text[:m.start], trimSeparators)
		return strings.TrimSpace(rest)

	case models.NormalizeActionNormalizePrefix:
		if m.start != 0 {
			return text
		}
		prefix := strings.TrimRight(text[m.start:m.end], trimSeparators)
		rest := strings.TrimLeft(text[m.end:], trimSeparators)
		separator := rule.ActionValue
		if separator == "" {
			separator = " | "
		}
		return prefix + separator + rest

	default:
		logging.Warn().Str("action_type", string(rule.ActionType)).Msg("unknown normalization action type")
		return text
	}
}

func applyElseAction(text string, rule models.NormalizationRule) string {
	if rule.ElseActionType == "" {
		return text
	}
	switch rule.ElseActionType {
	case models.NormalizeActionReplace:
		return rule.ElseActionValue

	case models.NormalizeActionRegexReplace:
		if rule.ConditionValue == "" {
			return text
		}
		flags := "(?i)"
		if rule.CaseSensitive {
			flags = ""
		}
		re, err := regexp.Compile(flags + rule.ConditionValue)
		if err != nil {
			logging.Warn().Err(err).Int("rule_id", rule.ID).Msg("regex replace error in else action")
			return text
		}
		return re.ReplaceAllString(text, rule.ElseActionValue)

	case models.NormalizeActionStripPrefix:
		return strings.TrimSpace(strings.TrimLeft(text, trimSeparators))

	case models.NormalizeActionStripSuffix:
		return strings.TrimSpace(strings.TrimRight(text, trimSeparators))

	case models.NormalizeActionRemove, models.NormalizeActionNormalizePrefix:
		logging.Warn().Int("rule_id", rule.ID).Str("else_action_type", string(rule.ElseActionType)).Msg("else action has no effect without a match")
		return text

	default:
		logging.Warn().Str("else_action_type", string(rule.ElseActionType)).Msg("unknown normalization else action type")
		return text
	}
}
