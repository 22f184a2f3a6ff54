// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/rules"
)

// executeMergeStreams adds stream to an already-existing channel, found
// through a cascade of lookup strategies: an explicit find_channel_by
// selector, falling back (for target "auto") to normalized-name, then
// core-name (with a deparenthesized retry and, failing that, a
// single-candidate word-prefix match), then FCC call sign. merge_streams
// never creates a channel — a stream with no matching channel is skipped.
func (e *ActionExecutor) executeMergeStreams(ctx context.Context, action models.Action, stream models.Stream, execCtx *ExecutionContext) models.ActionResult {
	params := action.Params
	target := paramString(params, "target", "auto")
	findBy := paramString(params, "find_channel_by", "")
	findValue := paramString(params, "find_channel_value", "")
	maxStreams, hasMax := paramInt(params, "max_streams_per_channel")

	var channel *models.Channel
	switch findBy {
	case "name_exact":
		channel = e.findChannelByName(findValue)
	case "name_regex":
		channel = e.findChannelByRegex(findValue)
	case "tvg_id":
		v := findValue
		if v == "" {
			v = stream.TVGID
		}
		channel = e.findChannelByTVGID(v)
	}

	if channel == nil && target == "auto" && findBy == "" {
		lookup := stream.NormalizedName
		if lookup == "" {
			lookup = stream.Name
		}
		channel = e.findChannelByName(lookup)
	}

	normalizeNames := paramBool(params, "normalize_names", true)
	if channel == nil && target == "auto" && normalizeNames {
		channel = e.coreNameFallback(stream)
	}
	if channel == nil && target == "auto" && normalizeNames {
		if cs := rules.ExtractCallSign(stream.Name); cs != "" {
			channel = e.callsignToChannel[cs]
		}
	}

	if channel == nil {
		if target == "existing_channel" {
			return models.ActionResult{Success: false, ActionType: action.Type, Description: fmt.Sprintf("No channel found matching %s=%q", findBy, findValue), Error: "channel not found for merge"}
		}
		return models.ActionResult{Success: true, ActionType: action.Type, Description: "No existing channel found — stream skipped (merge_streams only adds to existing channels)", Skipped: true}
	}

	if hasMax && maxStreams > 0 {
		key := channelProviderKey{channel.ID, stream.ProviderID}
		count := e.channelProviderCnt[key]
		if count >= maxStreams {
			return models.ActionResult{
				Success: true, ActionType: action.Type,
				Description: fmt.Sprintf("Skipped: %q already has %d stream(s) from %s (limit: %d/provider)", channel.Name, count, stream.ProviderName, maxStreams),
				EntityType:  "channel", EntityID: channel.ID, EntityName: channel.Name, Skipped: true,
			}
		}
	}

	return e.addStreamToChannel(ctx, channel, stream, execCtx)
}

var deparenRE = regexp.MustCompile(`\(([^)]+)\)`)
var collapseSpaceRE = regexp.MustCompile(`\s+`)

func (e *ActionExecutor) coreNameFallback(stream models.Stream) *models.Channel {
	core := rules.ExtractCoreName(stream.Name)
	if core == "" {
		return nil
	}
	if ch, ok := e.coreNameToChannel[strings.ToLower(core)]; ok {
		return ch
	}
	if ch := e.findChannelByName(core); ch != nil {
		return ch
	}

	deparen := strings.TrimSpace(collapseSpaceRE.ReplaceAllString(deparenRE.ReplaceAllString(core, "$1"), " "))
	if !strings.EqualFold(deparen, core) {
		if ch, ok := e.coreNameToChannel[strings.ToLower(deparen)]; ok {
			return ch
		}
		if ch := e.findChannelByName(deparen); ch != nil {
			return ch
		}
	}

	lookupWords := strings.Fields(strings.ToLower(deparen))
	if len(lookupWords) < 2 {
		return nil
	}
	var candidates []*models.Channel
	for coreKey, ch := range e.coreNameToChannel {
		chWords := strings.Fields(coreKey)
		if len(chWords) < 2 {
			continue
		}
		shorter, longer := lookupWords, chWords
		if len(chWords) < len(lookupWords) {
			shorter, longer = chWords, lookupWords
		}
		if wordPrefixEqual(longer, shorter) {
			candidates = append(candidates, ch)
		}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	return nil
}

func wordPrefixEqual(longer, shorter []string) bool {
	if len(shorter) > len(longer) {
		return false
	}
	for i, w := range shorter {
		if longer[i] != w {
			return false
		}
	}
	return true
}

// addStreamToChannel adds stream to channel's stream list, tracking the
// per-provider count used by max_streams_per_channel and updating the
// channel's cached streams so a later merge in the same run sees it.
func (e *ActionExecutor) addStreamToChannel(ctx context.Context, channel *models.Channel, stream models.Stream, execCtx *ExecutionContext) models.ActionResult {
	for _, id := range channel.Streams {
		if id == stream.ID {
			execCtx.CurrentChannelID = channel.ID
			return models.ActionResult{Success: true, ActionType: models.ActionMergeStreams, Description: fmt.Sprintf("Stream already in channel %q", channel.Name), EntityType: "channel", EntityID: channel.ID, EntityName: channel.Name, Skipped: true}
		}
	}

	newStreams := append(append([]int{}, channel.Streams...), stream.ID)

	if execCtx.DryRun {
		channel.Streams = newStreams
		e.channelProviderCnt[channelProviderKey{channel.ID, stream.ProviderID}]++
		execCtx.CurrentChannelID = channel.ID
		return models.ActionResult{Success: true, ActionType: models.ActionMergeStreams, Description: fmt.Sprintf("Would add stream to channel %q (stream %d)", channel.Name, len(newStreams)), EntityType: "channel", EntityID: channel.ID, EntityName: channel.Name, Modified: true}
	}

	prev := map[string]any{"streams": append([]int{}, channel.Streams...)}
	_, err := e.client.UpdateChannel(ctx, channel.ID, map[string]any{"streams": newStreams})
	if err != nil {
		return models.ActionResult{Success: false, ActionType: models.ActionMergeStreams, Description: "Failed to add stream to channel", Error: err.Error()}
	}
	channel.Streams = newStreams
	e.channelProviderCnt[channelProviderKey{channel.ID, stream.ProviderID}]++
	execCtx.CurrentChannelID = channel.ID
	return models.ActionResult{Success: true, ActionType: models.ActionMergeStreams, Description: fmt.Sprintf("Added stream to channel %q (stream %d)", channel.Name, len(newStreams)), EntityType: "channel", EntityID: channel.ID, EntityName: channel.Name, Modified: true, PreviousState: prev}
}
