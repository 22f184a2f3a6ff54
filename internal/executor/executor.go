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

	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/models"
)

// Execute runs one action from a matched rule's action list. template is
// the per-stream variable set (built once per stream, not per action); any
// key of buildTemplateContext's fixed set that template lacks is filled in
// from stream. execCtx carries state across the actions in this rule's list.
func (e *ActionExecutor) Execute(ctx context.Context, action models.Action, stream models.Stream, execCtx *ExecutionContext, template map[string]string) models.ActionResult {
	if template == nil {
		template = map[string]string{}
	}
	for k, v := range buildTemplateContext(stream) {
		if _, ok := template[k]; !ok {
			template[k] = v
		}
	}
	switch action.Type {
	case models.ActionCreateChannel:
		return e.executeCreateChannel(ctx, action, stream, execCtx, template)
	case models.ActionCreateGroup:
		return e.executeCreateGroup(ctx, action, execCtx, template)
	case models.ActionMergeStreams:
		return e.executeMergeStreams(ctx, action, stream, execCtx)
	case models.ActionAssignLogo:
		return e.executeAssignLogo(ctx, action, stream, execCtx)
	case models.ActionAssignTVGID:
		return e.executeAssignTVGID(ctx, action, stream, execCtx)
	case models.ActionAssignEPG:
		return e.executeAssignEPG(ctx, action, execCtx)
	case models.ActionAssignProfile:
		return e.executeAssignProfile(ctx, action, execCtx)
	case models.ActionSetChannelNum:
		return e.executeSetChannelNumber(ctx, action, execCtx)
	case models.ActionSetVariable:
		return e.executeSetVariable(action, execCtx, template)
	case models.ActionSkip:
		return models.ActionResult{Success: true, ActionType: action.Type, Description: "Stream skipped by rule", Skipped: true}
	case models.ActionStopProcessing:
		return models.ActionResult{Success: true, ActionType: action.Type, Description: "Stopped processing further actions"}
	case models.ActionLogMatch:
		return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Matched stream %q", stream.Name)}
	default:
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "Unknown action type", Error: string(action.Type)}
	}
}

func (e *ActionExecutor) executeCreateChannel(ctx context.Context, action models.Action, stream models.Stream, execCtx *ExecutionContext, template map[string]string) models.ActionResult {
	params := action.Params
	nameTemplate := paramString(params, "name_template", "{stream_name}")
	name := expandTemplate(nameTemplate, template, execCtx.CustomVariables)
	name = applyNameTransform(name, params)
	if strings.TrimSpace(name) == "" {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "Channel name is empty after template expansion", Error: "empty channel name"}
	}
	ifExists := paramString(params, "if_exists", "skip")

	existing := e.findChannelByName(name)
	if existing != nil {
		switch ifExists {
		case "merge", "merge_only":
			execCtx.CurrentChannelID = existing.ID
			return e.addStreamToChannel(ctx, existing, stream, execCtx)
		case "update":
			execCtx.CurrentChannelID = existing.ID
			return e.updateChannel(ctx, existing, stream, execCtx)
		default: // skip
			execCtx.CurrentChannelID = existing.ID
			return models.ActionResult{
				Success: true, ActionType: action.Type,
				Description: fmt.Sprintf("Channel %q already exists, skipped", name),
				EntityType:  "channel", EntityID: existing.ID, EntityName: name, Skipped: true,
			}
		}
	}
	if ifExists == "merge_only" {
		return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("No existing channel %q to merge into, skipped", name), Skipped: true}
	}

	numberSpec := params["channel_number"]
	if numberSpec == nil {
		numberSpec = "auto"
	}
	number := parseChannelNumberSpec(numberSpec, e.usedChannelNumbers)
	finalName := e.applyChannelNumberInName(name, number)

	logoID, tvgID := e.resolveStreamProperties(ctx, stream)

	newChannel := models.Channel{
		Name:          finalName,
		ChannelNumber: float64(number),
		TVGID:         tvgID,
		LogoID:        logoID,
		Streams:       []int{stream.ID},
		AutoCreated:   true,
	}
	if gid := execCtx.CurrentGroupID; gid != 0 {
		newChannel.GroupID = &gid
	}

	if execCtx.DryRun {
		newChannel.ID = e.nextSimID()
		e.indexCreatedChannel(&newChannel)
		e.usedChannelNumbers[number] = true
		return models.ActionResult{
			Success: true, ActionType: action.Type,
			Description: fmt.Sprintf("Would create channel %q (number %d)", finalName, number),
			EntityType:  "channel", EntityName: finalName, Created: true,
		}
	}

	created, err := e.client.CreateChannel(ctx, newChannel)
	if err != nil {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: fmt.Sprintf("Failed to create channel %q", finalName), Error: err.Error()}
	}
	e.indexCreatedChannel(created)
	e.usedChannelNumbers[number] = true
	execCtx.CurrentChannelID = created.ID

	details := map[string]any{}
	if len(e.DefaultProfileIDs) > 0 {
		details["profiles"] = e.assignDefaultProfiles(ctx, created.ID, false)
	}

	return models.ActionResult{
		Success: true, ActionType: action.Type,
		Description: fmt.Sprintf("Created channel %q (number %d)", finalName, number),
		EntityType:  "channel", EntityID: created.ID, EntityName: finalName, Created: true, Details: details,
	}
}

func (e *ActionExecutor) indexCreatedChannel(ch *models.Channel) {
	lower := strings.ToLower(ch.Name)
	e.createdChannels[lower] = ch
	e.channelByID[ch.ID] = ch
}

// resolveStreamProperties resolves a stream's logo URL to an upstream logo
// id (creating it if necessary, recovering from a duplicate-URL conflict by
// looking the existing logo up) and passes the stream's tvg_id through.
func (e *ActionExecutor) resolveStreamProperties(ctx context.Context, stream models.Stream) (logoID *int, tvgID string) {
	tvgID = stream.TVGID
	if stream.LogoURL == "" {
		return nil, tvgID
	}
	logo, err := e.client.CreateLogo(ctx, stream.LogoURL, stream.Name)
	if err != nil {
		logo, err = e.client.FindLogoByURL(ctx, stream.LogoURL)
		if err != nil {
			return nil, tvgID
		}
	}
	id := logo.ID
	return &id, tvgID
}

// assignDefaultProfiles enables channelID in every configured default
// profile and disables it in every other known profile. In a dry run no
// upstream call is made — the description still reports what would
// happen, same as every other dry-run action.
func (e *ActionExecutor) assignDefaultProfiles(ctx context.Context, channelID int, dryRun bool) string {
	if len(e.DefaultProfileIDs) == 0 || len(e.AllProfileIDs) == 0 {
		return ""
	}
	defaults := make(map[int]bool, len(e.DefaultProfileIDs))
	for _, id := range e.DefaultProfileIDs {
		defaults[id] = true
	}
	enabled, disabled := 0, 0
	for _, pid := range e.AllProfileIDs {
		want := defaults[pid]
		if want {
			enabled++
		} else {
			disabled++
		}
		if dryRun {
			continue
		}
		if err := e.client.SetChannelProfileEnabled(ctx, pid, channelID, want); err != nil {
			logging.Warn().Err(err).Int("profile_id", pid).Int("channel_id", channelID).Msg("failed to set channel profile membership")
		}
	}
	return fmt.Sprintf("profiles: enabled in %d, disabled in %d", enabled, disabled)
}

func (e *ActionExecutor) updateChannel(ctx context.Context, channel *models.Channel, stream models.Stream, execCtx *ExecutionContext) models.ActionResult {
	if execCtx.DryRun {
		return models.ActionResult{Success: true, ActionType: models.ActionCreateChannel, Description: fmt.Sprintf("Would update channel %q", channel.Name), EntityType: "channel", EntityID: channel.ID, EntityName: channel.Name, Modified: true}
	}
	updates := map[string]any{}
	prev := map[string]any{}
	if stream.LogoURL != "" && channel.LogoID == nil {
		if logoID, _ := e.resolveStreamProperties(ctx, stream); logoID != nil {
			updates["logo_id"] = *logoID
			prev["logo_id"] = channel.LogoID
		}
	}
	if stream.TVGID != "" && channel.TVGID == "" {
		updates["tvg_id"] = stream.TVGID
		prev["tvg_id"] = channel.TVGID
	}
	if len(updates) == 0 {
		return models.ActionResult{Success: true, ActionType: models.ActionCreateChannel, Description: fmt.Sprintf("Channel %q already up to date", channel.Name), EntityType: "channel", EntityID: channel.ID, EntityName: channel.Name}
	}
	updated, err := e.client.UpdateChannel(ctx, channel.ID, updates)
	if err != nil {
		return models.ActionResult{Success: false, ActionType: models.ActionCreateChannel, Description: "Failed to update channel", Error: err.Error()}
	}
	*channel = *updated
	return models.ActionResult{Success: true, ActionType: models.ActionCreateChannel, Description: fmt.Sprintf("Updated channel %q", channel.Name), EntityType: "channel", EntityID: channel.ID, EntityName: channel.Name, Modified: true, PreviousState: prev}
}

func (e *ActionExecutor) executeCreateGroup(ctx context.Context, action models.Action, execCtx *ExecutionContext, template map[string]string) models.ActionResult {
	params := action.Params
	nameTemplate := paramString(params, "name_template", "{stream_group}")
	name := expandTemplate(nameTemplate, template, execCtx.CustomVariables)
	name = applyNameTransform(name, params)
	if strings.TrimSpace(name) == "" {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "Group name is empty after template expansion", Error: "empty group name"}
	}
	ifExists := paramString(params, "if_exists", "use_existing")

	if existing := e.findGroupByName(name); existing != nil {
		execCtx.CurrentGroupID = existing.ID
		desc := fmt.Sprintf("Using existing group %q", name)
		if ifExists == "skip" {
			desc = fmt.Sprintf("Group %q already exists, skipped", name)
		}
		return models.ActionResult{Success: true, ActionType: action.Type, Description: desc, EntityType: "group", EntityID: existing.ID, EntityName: name, Skipped: true}
	}

	if execCtx.DryRun {
		g := &models.Group{ID: e.nextSimID(), Name: name}
		e.createdGroups[strings.ToLower(name)] = g
		execCtx.CurrentGroupID = g.ID
		return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Would create group %q", name), EntityType: "group", EntityName: name, Created: true}
	}

	created, err := e.client.CreateChannelGroup(ctx, name)
	if err != nil {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: fmt.Sprintf("Failed to create group %q", name), Error: err.Error()}
	}
	e.createdGroups[strings.ToLower(name)] = created
	e.groupByID[created.ID] = created
	execCtx.CurrentGroupID = created.ID
	return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Created group %q", name), EntityType: "group", EntityID: created.ID, EntityName: name, Created: true}
}

func (e *ActionExecutor) executeAssignLogo(ctx context.Context, action models.Action, stream models.Stream, execCtx *ExecutionContext) models.ActionResult {
	if execCtx.CurrentChannelID == 0 {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "No channel context for assign_logo", Error: "no channel to update"}
	}
	value := paramString(action.Params, "value", "from_stream")
	logoURL := stream.LogoURL
	if value != "from_stream" {
		logoURL = value
	}
	if logoURL == "" {
		return models.ActionResult{Success: true, ActionType: action.Type, Description: "No logo URL to assign", Skipped: true}
	}
	if execCtx.DryRun {
		return models.ActionResult{Success: true, ActionType: action.Type, Description: "Would assign logo", EntityType: "channel", EntityID: execCtx.CurrentChannelID, Modified: true}
	}
	ch := e.channelByID[execCtx.CurrentChannelID]
	logo, err := e.client.CreateLogo(ctx, logoURL, "")
	if err != nil {
		if logo, err = e.client.FindLogoByURL(ctx, logoURL); err != nil {
			return models.ActionResult{Success: false, ActionType: action.Type, Description: "Failed to assign logo", Error: err.Error()}
		}
	}
	prev := map[string]any{"logo_id": ch.LogoID}
	updated, err := e.client.UpdateChannel(ctx, execCtx.CurrentChannelID, map[string]any{"logo_id": logo.ID})
	if err != nil {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "Failed to assign logo", Error: err.Error()}
	}
	*ch = *updated
	return models.ActionResult{Success: true, ActionType: action.Type, Description: "Assigned logo to channel", EntityType: "channel", EntityID: execCtx.CurrentChannelID, Modified: true, PreviousState: prev}
}

func (e *ActionExecutor) executeAssignTVGID(ctx context.Context, action models.Action, stream models.Stream, execCtx *ExecutionContext) models.ActionResult {
	if execCtx.CurrentChannelID == 0 {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "No channel context for assign_tvg_id", Error: "no channel to update"}
	}
	value := paramString(action.Params, "value", "from_stream")
	tvgID := stream.TVGID
	if value != "from_stream" {
		tvgID = value
	}
	if tvgID == "" {
		return models.ActionResult{Success: true, ActionType: action.Type, Description: "No tvg_id to assign", Skipped: true}
	}
	if execCtx.DryRun {
		return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Would assign tvg_id %q", tvgID), EntityType: "channel", EntityID: execCtx.CurrentChannelID, Modified: true}
	}
	ch := e.channelByID[execCtx.CurrentChannelID]
	prev := map[string]any{"tvg_id": ch.TVGID}
	updated, err := e.client.UpdateChannel(ctx, execCtx.CurrentChannelID, map[string]any{"tvg_id": tvgID})
	if err != nil {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "Failed to assign tvg_id", Error: err.Error()}
	}
	*ch = *updated
	return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Assigned tvg_id %q to channel", tvgID), EntityType: "channel", EntityID: execCtx.CurrentChannelID, Modified: true, PreviousState: prev}
}

func (e *ActionExecutor) executeAssignProfile(ctx context.Context, action models.Action, execCtx *ExecutionContext) models.ActionResult {
	if execCtx.CurrentChannelID == 0 {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "No channel context for assign_profile", Error: "no channel to update"}
	}
	profileID, ok := paramInt(action.Params, "profile_id")
	if !ok {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "No profile_id specified", Error: "missing profile_id"}
	}
	if execCtx.DryRun {
		return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Would assign stream profile %d", profileID), EntityType: "channel", EntityID: execCtx.CurrentChannelID, Modified: true}
	}
	ch := e.channelByID[execCtx.CurrentChannelID]
	prev := map[string]any{"stream_profile_id": ch.StreamProfileID}
	updated, err := e.client.UpdateChannel(ctx, execCtx.CurrentChannelID, map[string]any{"stream_profile_id": profileID})
	if err != nil {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "Failed to assign profile", Error: err.Error()}
	}
	*ch = *updated
	return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Assigned stream profile %d to channel", profileID), EntityType: "channel", EntityID: execCtx.CurrentChannelID, Modified: true, PreviousState: prev}
}

func (e *ActionExecutor) executeSetChannelNumber(ctx context.Context, action models.Action, execCtx *ExecutionContext) models.ActionResult {
	if execCtx.CurrentChannelID == 0 {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "No channel context for set_channel_number", Error: "no channel to update"}
	}
	spec := action.Params["value"]
	if spec == nil {
		spec = "auto"
	}
	number := parseChannelNumberSpec(spec, e.usedChannelNumbers)
	if execCtx.DryRun {
		return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Would set channel number to %d", number), EntityType: "channel", EntityID: execCtx.CurrentChannelID, Modified: true}
	}
	ch := e.channelByID[execCtx.CurrentChannelID]
	prev := map[string]any{"channel_number": ch.ChannelNumber}
	updated, err := e.client.UpdateChannel(ctx, execCtx.CurrentChannelID, map[string]any{"channel_number": number})
	if err != nil {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "Failed to set channel number", Error: err.Error()}
	}
	*ch = *updated
	e.usedChannelNumbers[number] = true
	return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Set channel number to %d", number), EntityType: "channel", EntityID: execCtx.CurrentChannelID, Modified: true, PreviousState: prev}
}

func (e *ActionExecutor) executeSetVariable(action models.Action, execCtx *ExecutionContext, template map[string]string) models.ActionResult {
	params := action.Params
	varName := paramString(params, "variable_name", "")
	mode := paramString(params, "variable_mode", "literal")
	if varName == "" {
		return models.ActionResult{Success: false, ActionType: action.Type, Description: "No variable_name specified", Error: "missing variable_name"}
	}

	var result string
	switch mode {
	case "regex_extract":
		sourceField := paramString(params, "source_field", "stream_name")
		source := template[sourceField]
		pattern := paramString(params, "pattern", "")
		re, err := regexp.Compile(pattern)
		if err != nil {
			return models.ActionResult{Success: false, ActionType: action.Type, Description: fmt.Sprintf("Invalid regex in set_variable: %v", err), Error: err.Error()}
		}
		m := re.FindStringSubmatch(source)
		switch {
		case len(m) > 1:
			result = m[1]
		case len(m) == 1:
			result = m[0]
		}
	case "regex_replace":
		sourceField := paramString(params, "source_field", "stream_name")
		source := template[sourceField]
		pattern := paramString(params, "pattern", "")
		replacement := paramString(params, "replacement", "")
		re, err := regexp.Compile(pattern)
		if err != nil {
			return models.ActionResult{Success: false, ActionType: action.Type, Description: fmt.Sprintf("Invalid regex in set_variable: %v", err), Error: err.Error()}
		}
		result = re.ReplaceAllString(source, replacement)
	case "literal":
		result = expandTemplate(paramString(params, "template", ""), template, execCtx.CustomVariables)
	default:
		return models.ActionResult{Success: false, ActionType: action.Type, Description: fmt.Sprintf("Unknown variable mode %q", mode), Error: "unknown variable mode"}
	}

	execCtx.CustomVariables[varName] = result
	return models.ActionResult{Success: true, ActionType: action.Type, Description: fmt.Sprintf("Set variable %q = %q", varName, result)}
}
