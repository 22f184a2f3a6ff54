// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package rules

import (
	"regexp"
	"strings"

	"github.com/tomtom215/dispatchctl/internal/models"
)

// TagRegistry resolves tag_in conditions against configured TagGroups and
// extracts FCC call signs for the executor's local-affiliate merge
// fallback. It is loaded once per pipeline run and is not safe to mutate
// concurrently with lookups — callers build a fresh registry per run via
// NewTagRegistry.
type TagRegistry struct {
	groups map[int][]models.Tag // tag group id -> enabled tags
}

// NewTagRegistry builds a registry from the enabled tags in each group,
// filtering disabled tags up front so lookups never re-check Enabled.
func NewTagRegistry(groups []models.TagGroup, tags []models.Tag) *TagRegistry {
	byGroup := make(map[int][]models.Tag)
	for _, t := range tags {
		if !t.Enabled {
			continue
		}
		byGroup[t.GroupID] = append(byGroup[t.GroupID], t)
	}
	return &TagRegistry{groups: byGroup}
}

// MatchTagGroup reports whether name contains any enabled tag from
// groupID at the requested position, and if so which tag value matched.
func (r *TagRegistry) MatchTagGroup(name string, groupID int, position models.TagMatchPosition) (matched bool, tagValue string) {
	for _, tag := range r.groups[groupID] {
		value := convertSuperscripts(tag.Value)
		matchText, matchTag := convertSuperscripts(name), value
		if !tag.CaseSensitive {
			matchText = strings.ToLower(matchText)
			matchTag = strings.ToLower(matchTag)
		}
		switch position {
		case models.TagPositionPrefix:
			if strings.HasPrefix(matchText, matchTag) {
				rest := matchText[len(matchTag):]
				if rest != "" && separatorRE.MatchString(rest[:1]) {
					return true, tag.Value
				}
			}
		case models.TagPositionSuffix:
			if strings.HasSuffix(matchText, matchTag) {
				prefixLen := len(matchText) - len(matchTag)
				if prefixLen > 0 && separatorRE.MatchString(matchText[prefixLen-1 : prefixLen]) {
					return true, tag.Value
				}
			}
			paren := "(" + matchTag + ")"
			if strings.HasSuffix(matchText, paren) {
				prefixLen := len(matchText) - len(paren)
				if prefixLen > 0 && matchText[prefixLen-1] == ' ' {
					return true, tag.Value
				}
			}
		default: // contains
			if strings.Contains(matchText, matchTag) {
				return true, tag.Value
			}
		}
	}
	return false, ""
}

// MatchAnyTagGroup checks name against every enabled group and reports
// whether any tag from any group matched. Used by ConditionTagIn.
func (r *TagRegistry) MatchAnyTagGroup(name string, groupIDs []int, position models.TagMatchPosition) bool {
	for _, id := range groupIDs {
		if matched, _ := r.MatchTagGroup(name, id, position); matched {
			return true
		}
	}
	return false
}

var separatorRE = regexp.MustCompile(`^[\s:\-|/]`)

// callsignFalsePositives are common English words that happen to fit the
// W/K + 2-3 letter call sign shape.
var callsignFalsePositives = map[string]bool{
	"WWE": true, "WEST": true, "KIDZ": true, "KIDS": true, "WNBA": true, "WPT": true,
}

var callsignParenRE = regexp.MustCompile(`\(([WK][A-Z]{2,3})\)`)
var callsignBareRE = regexp.MustCompile(`\b([WK][A-Z]{2,3})\b`)
var leadingChannelNumberRE = regexp.MustCompile(`^\d+\s*\|\s*`)
var channelNumberRE = regexp.MustCompile(`\b\d{1,2}\b`)

var broadcastNetworks = []string{
	"ABC", "CBS", "NBC", "FOX", "PBS", "CW", "MY", "ION",
	"UPN", "WB", "MNT", "UNIVISION", "TELEMUNDO",
}

var broadcastNetworkRE = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(broadcastNetworks))
	for i, net := range broadcastNetworks {
		res[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(net) + `\b`)
	}
	return res
}()

var callsignExcludedPrefixes = []string{"TEAMS:"}

// ExtractCallSign pulls an FCC call sign (W/K followed by 2-3 uppercase
// letters) out of name, preferring a parenthesized form like "(WFTS)" over
// a bare one. Bare extraction additionally requires a recognized broadcast
// network name or a channel number elsewhere in the string, to avoid
// matching ordinary English words that happen to fit the call-sign shape.
// Returns "" when no call sign is found.
func ExtractCallSign(name string) string {
	if name == "" {
		return ""
	}
	upper := strings.ToUpper(name)
	stripped := leadingChannelNumberRE.ReplaceAllString(upper, "")
	for _, prefix := range callsignExcludedPrefixes {
		if strings.HasPrefix(stripped, prefix) {
			return ""
		}
	}

	if m := callsignParenRE.FindStringSubmatch(upper); m != nil {
		if !callsignFalsePositives[m[1]] {
			return m[1]
		}
	}

	hasNetwork := false
	for _, re := range broadcastNetworkRE {
		if re.MatchString(upper) {
			hasNetwork = true
			break
		}
	}
	hasChannelNum := channelNumberRE.MatchString(upper)
	if !hasNetwork && !hasChannelNum {
		return ""
	}

	last := ""
	for _, m := range callsignBareRE.FindAllStringSubmatch(upper, -1) {
		if !callsignFalsePositives[m[1]] {
			last = m[1]
		}
	}
	return last
}
