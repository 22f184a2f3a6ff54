// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package rules

import (
	"testing"

	"github.com/tomtom215/dispatchctl/internal/models"
)

func TestExtractCallSignPrefersParenthesized(t *testing.T) {
	cs := ExtractCallSign("ABC Tampa (WFTS) HD")
	if cs != "WFTS" {
		t.Errorf("expected WFTS, got %q", cs)
	}
}

func TestExtractCallSignBareRequiresNetworkOrNumber(t *testing.T) {
	if cs := ExtractCallSign("New Wave Radio"); cs != "" {
		t.Errorf("expected no call sign for ambiguous bare text, got %q", cs)
	}
}

func TestExtractCallSignBareWithNetwork(t *testing.T) {
	cs := ExtractCallSign("CBS: TX WACO KWTX")
	if cs != "KWTX" {
		t.Errorf("expected last call sign KWTX, got %q", cs)
	}
}

func TestExtractCallSignRejectsFalsePositives(t *testing.T) {
	if cs := ExtractCallSign("WWE Network"); cs != "" {
		t.Errorf("expected no call sign for known false positive, got %q", cs)
	}
}

func TestExtractCallSignExcludedPrefix(t *testing.T) {
	if cs := ExtractCallSign("Teams: CBS Texans (KENS)"); cs != "" {
		t.Errorf("expected no call sign under excluded prefix, got %q", cs)
	}
}

func TestMatchTagGroupSuffixParenthesized(t *testing.T) {
	reg := NewTagRegistry(
		[]models.TagGroup{{ID: 1, Enabled: true}},
		[]models.Tag{{ID: 1, GroupID: 1, Value: "HD", Enabled: true}},
	)
	matched, tag := reg.MatchTagGroup("Channel Name (HD)", 1, models.TagPositionSuffix)
	if !matched || tag != "HD" {
		t.Errorf("expected parenthesized suffix match, got matched=%v tag=%q", matched, tag)
	}
}

func TestMatchTagGroupSuperscript(t *testing.T) {
	reg := NewTagRegistry(
		[]models.TagGroup{{ID: 1, Enabled: true}},
		[]models.Tag{{ID: 1, GroupID: 1, Value: "RAW", Enabled: true}},
	)
	matched, _ := reg.MatchTagGroup("Channel ᴿᴬᵂ", 1, models.TagPositionContains)
	if !matched {
		t.Error("expected superscript RAW to match tag RAW")
	}
}

func TestMatchTagGroupSkipsDisabledTags(t *testing.T) {
	reg := NewTagRegistry(
		[]models.TagGroup{{ID: 1, Enabled: true}},
		[]models.Tag{{ID: 1, GroupID: 1, Value: "HD", Enabled: false}},
	)
	matched, _ := reg.MatchTagGroup("Channel HD", 1, models.TagPositionContains)
	if matched {
		t.Error("expected disabled tag to never match")
	}
}
