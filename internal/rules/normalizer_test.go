// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package rules

import (
	"testing"

	"github.com/tomtom215/dispatchctl/internal/models"
)

func TestNormalizeStripsPrefix(t *testing.T) {
	n := NewNormalizer(
		[]models.NormalizationRuleGroup{{ID: 1, Enabled: true, Priority: 0}},
		[]models.NormalizationRule{{
			ID: 1, GroupID: 1, Enabled: true, Priority: 0,
			ConditionType: models.NormalizeStartsWith, ConditionValue: "US",
			ActionType: models.NormalizeActionStripPrefix,
		}},
		nil,
	)
	got := n.Normalize("US: ESPN")
	if got != "ESPN" {
		t.Errorf("expected ESPN, got %q", got)
	}
}

func TestNormalizeStripsSuffix(t *testing.T) {
	n := NewNormalizer(
		[]models.NormalizationRuleGroup{{ID: 1, Enabled: true, Priority: 0}},
		[]models.NormalizationRule{{
			ID: 1, GroupID: 1, Enabled: true, Priority: 0,
			ConditionType: models.NormalizeEndsWith, ConditionValue: "HD",
			ActionType: models.NormalizeActionStripSuffix,
		}},
		nil,
	)
	got := n.Normalize("ESPN HD")
	if got != "ESPN" {
		t.Errorf("expected ESPN, got %q", got)
	}
}

func TestNormalizeEndsWithDoesNotMatchSubstringWithoutSeparator(t *testing.T) {
	n := NewNormalizer(
		[]models.NormalizationRuleGroup{{ID: 1, Enabled: true, Priority: 0}},
		[]models.NormalizationRule{{
			ID: 1, GroupID: 1, Enabled: true, Priority: 0,
			ConditionType: models.NormalizeEndsWith, ConditionValue: "HD",
			ActionType: models.NormalizeActionStripSuffix,
		}},
		nil,
	)
	got := n.Normalize("ADHD")
	if got != "ADHD" {
		t.Errorf("expected unchanged ADHD, got %q", got)
	}
}

func TestNormalizeRulesRunInPriorityOrder(t *testing.T) {
	n := NewNormalizer(
		[]models.NormalizationRuleGroup{{ID: 1, Enabled: true, Priority: 0}},
		[]models.NormalizationRule{
			{ID: 2, GroupID: 1, Enabled: true, Priority: 1,
				ConditionType: models.NormalizeEndsWith, ConditionValue: "HD",
				ActionType: models.NormalizeActionStripSuffix},
			{ID: 1, GroupID: 1, Enabled: true, Priority: 0,
				ConditionType: models.NormalizeStartsWith, ConditionValue: "US",
				ActionType: models.NormalizeActionStripPrefix},
		},
		nil,
	)
	got := n.Normalize("US: ESPN HD")
	if got != "ESPN" {
		t.Errorf("expected ESPN after both passes, got %q", got)
	}
}

func TestNormalizeCompoundOrLogic(t *testing.T) {
	n := NewNormalizer(
		[]models.NormalizationRuleGroup{{ID: 1, Enabled: true, Priority: 0}},
		[]models.NormalizationRule{{
			ID: 1, GroupID: 1, Enabled: true, Priority: 0,
			Conditions: []models.NormalizeCondition{
				{Type: models.NormalizeContains, Value: "FHD"},
				{Type: models.NormalizeContains, Value: "UHD"},
			},
			ConditionLogic: "OR",
			ActionType:     models.NormalizeActionRemove,
		}},
		nil,
	)
	got := n.Normalize("Channel UHD Feed")
	if got != "Channel  Feed" {
		t.Errorf("expected UHD removed, got %q", got)
	}
}

func TestNormalizeDisabledRuleSkipped(t *testing.T) {
	n := NewNormalizer(
		[]models.NormalizationRuleGroup{{ID: 1, Enabled: true, Priority: 0}},
		[]models.NormalizationRule{{
			ID: 1, GroupID: 1, Enabled: false, Priority: 0,
			ConditionType: models.NormalizeAlways,
			ActionType:    models.NormalizeActionReplace, ActionValue: "REWRITTEN",
		}},
		nil,
	)
	got := n.Normalize("ESPN")
	if got != "ESPN" {
		t.Errorf("expected disabled rule to be skipped, got %q", got)
	}
}

func TestNormalizeTagGroupCondition(t *testing.T) {
	reg := NewTagRegistry(
		[]models.TagGroup{{ID: 5, Enabled: true}},
		[]models.Tag{{ID: 1, GroupID: 5, Value: "RAW", Enabled: true}},
	)
	n := NewNormalizer(
		[]models.NormalizationRuleGroup{{ID: 1, Enabled: true, Priority: 0}},
		[]models.NormalizationRule{{
			ID: 1, GroupID: 1, Enabled: true, Priority: 0,
			ConditionType: models.NormalizeTagGroup, TagGroupID: 5,
			TagMatchPosition: models.TagPositionContains,
			ActionType:       models.NormalizeActionRemove,
		}},
		reg,
	)
	got := n.Normalize("Channel RAW Feed")
	if got != "Channel  Feed" {
		t.Errorf("expected RAW removed via tag group, got %q", got)
	}
}
