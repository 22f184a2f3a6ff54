// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package executor

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

// executeAssignEPG resolves the user-selected EPG source to the
// best-matching data entry for the current channel and assigns its id as
// the channel's epg_data_id. Channels reference an EPG data entry, not a
// source directly, so every assign_epg has to pick one: by exact tvg_id,
// then exact normalized name, then a prefix match, then (for single-entry
// "dummy" EPG sources) the lone entry.
func (e *ActionExecutor) executeAssignEPG(ctx context.Context, action models.Action, execCtx *ExecutionContext) models.ActionResult {
	if execCtx.CurrentChannelID == 0 {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "No channel context for assign_epg", Error: "no channel to update"}
	}
	sourceID, ok := paramInt(action.Params, "epg_id")
	if !ok {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "No epg_id specified", Error: "missing epg_id"}
	}

	entries, err := e.epgEntriesForSource(ctx, sourceID)
	if err != nil || len(entries) == 0 {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: fmt.Sprintf("No EPG data entries found for source %d", sourceID), Error: "epg source has no data entries"}
	}

	ch := e.channelByID[execCtx.CurrentChannelID]
	entry := matchEPGData(ch.Name, ch.TVGID, entries)
	if entry == nil {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: fmt.Sprintf("No matching EPG data for %q in source %d", ch.Name, sourceID), Error: "no EPG data match found"}
	}

	if execCtx.DryRun {
		return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Would assign EPG data %d (source %d) to channel", entry.ID, sourceID), EntityType: "channel", EntityID: execCtx.CurrentChannelID, Modified: true}
	}

	prev := map[string]any{"epg_data_id": ch.EPGDataID}
	updated, err := e.client.UpdateChannel(ctx, execCtx.CurrentChannelID, map[string]any{"epg_data_id": entry.ID})
	if err != nil {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "Failed to assign EPG", Error: err.Error()}
	}
	*ch = *updated
	return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Assigned EPG data %d (source %d) to channel", entry.ID, sourceID), EntityType: "channel", EntityID: execCtx.CurrentChannelID, Modified: true, PreviousState: prev}
}

func (e *ActionExecutor) epgEntriesForSource(ctx context.Context, sourceID int) ([]upstream.EPGProgram, error) {
	if entries, ok := e.epgDataBySource[sourceID]; ok {
		return entries, nil
	}
	entries, err := e.client.GetEPGData(ctx, sourceID, "")
	if err != nil {
		return nil, err
	}
	e.epgDataBySource[sourceID] = entries
	return entries, nil
}

var qualitySuffixesEPG = []string{"fhd", "uhd", "4k", "hd", "sd", "1080p", "1080i", "720p", "480p", "2160p", "hevc", "h264", "h265"}
var timezoneSuffixesEPG = []string{"east", "west", "et", "pt", "ct", "mt"}
var leaguePrefixRE = regexp.MustCompile(`(?i)^(?:NFL|NBA|MLB|NHL|MLS|WNBA|NCAA|CFB|CBB|EPL|UEFA|FIFA|F1|NASCAR|PGA|ATP|WTA|WWE|UFC|AEW|BOXING)\s*[:|]\s*`)
var numberPrefixColonRE = regexp.MustCompile(`^\d+(?:\.\d+)?\s*[|\-:.]\s*`)
var numberPrefixSpaceRE = regexp.MustCompile(`^\d+(?:\.\d+)?\s+([A-Za-z])`)
var countryPrefixRE = regexp.MustCompile(`^[A-Z]{2}\s*[:|]\s*`)
var nonAlnumRE = regexp.MustCompile(`[^a-z0-9]`)
var leadingDigitsRE = regexp.MustCompile(`^\d+`)

// normalizeForEPG reduces a channel or EPG entry name to a bare
// alphanumeric key for fuzzy matching, mirroring the web UI's own EPG
// auto-match normalizer so dispatchctl's automatic assignment agrees with
// what a user doing it by hand would pick.
func normalizeForEPG(name string) string {
	n := strings.TrimSpace(name)
	n = numberPrefixColonRE.ReplaceAllString(n, "")
	n = numberPrefixSpaceRE.ReplaceAllString(n, "$1")
	n = countryPrefixRE.ReplaceAllString(n, "")
	n = leaguePrefixRE.ReplaceAllString(n, "")
	lower := strings.ToLower(n)
	for _, suffix := range qualitySuffixesEPG {
		lower = trimSuffixLoose(lower, suffix)
	}
	for _, suffix := range timezoneSuffixesEPG {
		lower = trimSuffixLoose(lower, suffix)
	}
	lower = strings.ReplaceAll(lower, "+", "plus")
	lower = strings.ReplaceAll(lower, "&", "and")
	lower = nonAlnumRE.ReplaceAllString(lower, "")
	lower = leadingDigitsRE.ReplaceAllString(lower, "")
	return lower
}

func trimSuffixLoose(s, suffix string) string {
	re := regexp.MustCompile(`(?i)[\s\-_|:]*` + regexp.QuoteMeta(suffix) + `\s*$`)
	return re.ReplaceAllString(s, "")
}

var leagueSuffixes = []string{
	"nfl", "nba", "mlb", "nhl", "mls", "wnba", "ncaa", "cfb", "cbb",
	"epl", "premierleague", "laliga", "bundesliga", "seriea", "ligue1",
	"uefa", "fifa", "f1", "nascar", "pga", "atp", "wta", "wwe", "ufc", "aew", "boxing",
}

var leagueSuffixSet = func() map[string]bool {
	m := make(map[string]bool, len(leagueSuffixes))
	for _, s := range leagueSuffixes {
		m[s] = true
	}
	return m
}()

var epgCallsignRE = regexp.MustCompile(`\(([^)]+)\)`)
var epgCallsignSuffixRE = regexp.MustCompile(`(?i)(hd|sd|fhd|uhd)$`)

// parseTVGID extracts the normalized base name from a tvg_id, which often
// carries a trailing league or country-code suffix ("ESPN.us",
// "Cardinals.nfl") and sometimes an embedded call sign ("AdultSwim(ADSM)").
func parseTVGID(tvgID string) string {
	lower := strings.ToLower(tvgID)
	namePart := tvgID
	if idx := strings.LastIndex(lower, "."); idx != -1 {
		suffix := lower[idx+1:]
		if leagueSuffixSet[suffix] || (len(suffix) >= 2 && len(suffix) <= 3 && isAlpha(suffix)) {
			namePart = tvgID[:idx]
		}
	}
	namePart = epgCallsignRE.ReplaceAllString(namePart, "")
	return normalizeForEPG(namePart)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

type epgCandidate struct {
	entry   upstream.EPGProgram
	lenDiff int
}

// matchEPGData picks the best EPG data entry for a channel: exact tvg_id,
// then exact normalized-name/call-sign match, then a >=4-char prefix
// match, then (for single-entry sources) the lone entry.
func matchEPGData(channelName, channelTVGID string, entries []upstream.EPGProgram) *upstream.EPGProgram {
	if channelTVGID != "" {
		for i := range entries {
			if entries[i].TVGID == channelTVGID {
				return &entries[i]
			}
		}
	}

	normChannel := normalizeForEPG(channelName)
	if normChannel == "" {
		if len(entries) == 1 {
			return &entries[0]
		}
		return nil
	}

	var exact, prefix []epgCandidate
	seenPrefix := map[int]bool{}
	for i := range entries {
		entry := entries[i]
		normTVG := ""
		if entry.TVGID != "" {
			normTVG = parseTVGID(entry.TVGID)
		}
		normName := ""
		if entry.ChannelName != "" {
			normName = normalizeForEPG(entry.ChannelName)
		}

		if normChannel == normTVG || normChannel == normName {
			exact = append(exact, epgCandidate{entry, abs(len(normTVG) - len(normChannel))})
			continue
		}

		if m := epgCallsignRE.FindStringSubmatch(entry.TVGID); m != nil {
			cs := nonAlnumRE.ReplaceAllString(strings.ToLower(m[1]), "")
			csBase := epgCallsignSuffixRE.ReplaceAllString(cs, "")
			if normChannel == cs || normChannel == csBase {
				exact = append(exact, epgCandidate{entry, 0})
				continue
			}
		}

		if len(normChannel) >= 4 && normTVG != "" && (strings.HasPrefix(normTVG, normChannel) || strings.HasPrefix(normChannel, normTVG)) {
			prefix = append(prefix, epgCandidate{entry, abs(len(normTVG) - len(normChannel))})
			seenPrefix[entry.ID] = true
		}
		if len(normChannel) >= 4 && normName != "" && (strings.HasPrefix(normName, normChannel) || strings.HasPrefix(normChannel, normName)) && !seenPrefix[entry.ID] {
			prefix = append(prefix, epgCandidate{entry, abs(len(normName) - len(normChannel))})
		}
	}

	if len(exact) > 0 {
		sort.Slice(exact, func(i, j int) bool { return exact[i].lenDiff < exact[j].lenDiff })
		return &exact[0].entry
	}
	if len(prefix) > 0 {
		sort.Slice(prefix, func(i, j int) bool { return prefix[i].lenDiff < prefix[j].lenDiff })
		return &prefix[0].entry
	}
	if len(entries) == 1 {
		return &entries[0]
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
