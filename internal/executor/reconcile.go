// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

// RemoveChannel deletes a channel Pass 4 determined is orphaned (no
// enabled rule claims it in its managed_channel_ids anchor). A 404 is
// treated as already-deleted, not a failure — reconciliation is
// idempotent by design (spec.md §4.3 Pass 4).
func (e *ActionExecutor) RemoveChannel(ctx context.Context, channelID int) models.ActionResult {
	name := e.channelDisplayName(channelID)
	err := e.client.DeleteChannel(ctx, channelID)
	if err == nil {
		return models.ActionResult{Success: true, ActionType: "remove_channel", Description: fmt.Sprintf("Deleted orphaned channel %q", name), EntityType: "channel", EntityID: channelID, EntityName: name}
	}
	if errors.Is(err, upstream.ErrNotFound) {
		return models.ActionResult{Success: true, ActionType: "remove_channel", Description: fmt.Sprintf("Channel %d already deleted", channelID), EntityType: "channel", EntityID: channelID}
	}
	return models.ActionResult{Success: false, ActionType: "remove_channel", Description: fmt.Sprintf("Failed to delete channel %d", channelID), Error: err.Error()}
}

// MoveChannelToUncategorized clears an orphaned channel's group instead of
// deleting it, for rules configured with OrphanMoveUncategorized.
func (e *ActionExecutor) MoveChannelToUncategorized(ctx context.Context, channelID int) models.ActionResult {
	name := e.channelDisplayName(channelID)
	_, err := e.client.UpdateChannel(ctx, channelID, map[string]any{"channel_group_id": nil})
	if err == nil {
		return models.ActionResult{Success: true, ActionType: "move_channel", Description: fmt.Sprintf("Moved orphaned channel %q to Uncategorized", name), EntityType: "channel", EntityID: channelID, EntityName: name, Modified: true}
	}
	if errors.Is(err, upstream.ErrNotFound) {
		return models.ActionResult{Success: true, ActionType: "move_channel", Description: fmt.Sprintf("Channel %d already deleted", channelID), EntityType: "channel", EntityID: channelID}
	}
	return models.ActionResult{Success: false, ActionType: "move_channel", Description: fmt.Sprintf("Failed to move channel %d", channelID), Error: err.Error()}
}

// DeleteGroupIfEmpty removes a rule-managed group once Pass 4 finds no
// remaining channel assigned to it, for OrphanDeleteAndCleanupGroups.
// remainingChannels is the Pass 4 channel snapshot — not re-fetched here,
// since the caller (the engine) already holds it after reconciling
// channels.
func (e *ActionExecutor) DeleteGroupIfEmpty(ctx context.Context, groupID int, remainingChannels []models.Channel) models.ActionResult {
	name := groupID
	var groupName string
	if g, ok := e.groupByID[groupID]; ok {
		groupName = g.Name
	}

	inGroup := 0
	for _, ch := range remainingChannels {
		if ch.GroupID != nil && *ch.GroupID == groupID {
			inGroup++
		}
	}
	if inGroup > 0 {
		return models.ActionResult{Success: true, ActionType: "delete_empty_group", Description: fmt.Sprintf("Group %q still has %d channels, kept", groupName, inGroup), EntityType: "group", EntityID: groupID, EntityName: groupName, Skipped: true}
	}

	err := e.client.DeleteChannelGroup(ctx, groupID)
	if err == nil {
		return models.ActionResult{Success: true, ActionType: "delete_empty_group", Description: fmt.Sprintf("Deleted empty group %q", groupName), EntityType: "group", EntityID: groupID, EntityName: groupName}
	}
	if errors.Is(err, upstream.ErrNotFound) {
		return models.ActionResult{Success: true, ActionType: "delete_empty_group", Description: fmt.Sprintf("Group %d already deleted", name), EntityType: "group", EntityID: groupID}
	}
	return models.ActionResult{Success: false, ActionType: "delete_empty_group", Description: fmt.Sprintf("Failed to delete group %d", groupID), Error: err.Error()}
}

func (e *ActionExecutor) channelDisplayName(channelID int) string {
	if ch, ok := e.channelByID[channelID]; ok {
		return ch.Name
	}
	return fmt.Sprintf("ID:%d", channelID)
}
