// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package engine

import (
	"context"
	"testing"

	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

type fakeClient struct {
	upstream.Client
	channels          []models.Channel
	groups            []models.Group
	streams           []models.Stream
	nextChannelID     int
	deleted           []int
	deletedGroups     []int
	deleteErrs        map[int]error // channel id -> error DeleteChannel returns
	deleteGroupErrs   map[int]error // group id -> error DeleteChannelGroup returns
	updateErrs        map[int]error // channel id -> error UpdateChannel returns
}

func (f *fakeClient) ListChannels(ctx context.Context, page, pageSize int, search, group string) (*upstream.ChannelPage, error) {
	if page > 1 {
		return &upstream.ChannelPage{Count: len(f.channels)}, nil
	}
	return &upstream.ChannelPage{Count: len(f.channels), Results: f.channels}, nil
}

func (f *fakeClient) ListChannelGroups(ctx context.Context) ([]models.Group, error) {
	return f.groups, nil
}

func (f *fakeClient) ListStreams(ctx context.Context, page, pageSize, providerID int) (*upstream.StreamPage, error) {
	if page > 1 {
		return &upstream.StreamPage{Count: len(f.streams)}, nil
	}
	return &upstream.StreamPage{Count: len(f.streams), Results: f.streams}, nil
}

func (f *fakeClient) CreateChannel(ctx context.Context, data models.Channel) (*models.Channel, error) {
	f.nextChannelID++
	data.ID = f.nextChannelID
	f.channels = append(f.channels, data)
	return &data, nil
}

func (f *fakeClient) UpdateChannel(ctx context.Context, id int, data map[string]any) (*models.Channel, error) {
	if err, ok := f.updateErrs[id]; ok {
		return nil, err
	}
	for i := range f.channels {
		if f.channels[i].ID == id {
			if v, ok := data["streams"]; ok {
				f.channels[i].Streams = v.([]int)
			}
			return &f.channels[i], nil
		}
	}
	return &models.Channel{ID: id}, nil
}

func (f *fakeClient) DeleteChannel(ctx context.Context, id int) error {
	if err, ok := f.deleteErrs[id]; ok {
		return err
	}
	f.deleted = append(f.deleted, id)
	for i, c := range f.channels {
		if c.ID == id {
			f.channels = append(f.channels[:i], f.channels[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeClient) DeleteChannelGroup(ctx context.Context, id int) error {
	if err, ok := f.deleteGroupErrs[id]; ok {
		return err
	}
	f.deletedGroups = append(f.deletedGroups, id)
	return nil
}

func (f *fakeClient) CreateLogo(ctx context.Context, url, name string) (*upstream.Logo, error) {
	return &upstream.Logo{ID: 1, URL: url}, nil
}

func espnRule() models.Rule {
	return models.Rule{
		ID: 1, Name: "ESPN", Enabled: true, Priority: 0,
		Conditions: []models.Condition{{Type: models.ConditionNameContains, Value: "ESPN"}},
		Actions: []models.Action{
			{Type: models.ActionCreateChannel, Params: map[string]any{"name_template": "{stream_name}", "if_exists": "merge"}},
		},
		OrphanAction: models.OrphanDelete,
	}
}

func TestRunCreatesChannelForMatchingStream(t *testing.T) {
	fc := &fakeClient{streams: []models.Stream{{ID: 1, Name: "ESPN HD"}}}
	eng := New(fc, nil, nil, nil, 2)

	exec, updatedRules, err := eng.Run(context.Background(), []models.Rule{espnRule()}, models.ModeExecute, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.StreamsMatched != 1 || exec.ChannelsCreated != 1 {
		t.Fatalf("expected 1 match and 1 created channel, got %+v", exec)
	}
	if len(updatedRules[0].ManagedChannelIDs) != 1 {
		t.Fatalf("expected rule to manage 1 channel, got %v", updatedRules[0].ManagedChannelIDs)
	}
}

func TestRunReconcilesOrphanedChannelOnSecondRun(t *testing.T) {
	fc := &fakeClient{streams: []models.Stream{{ID: 1, Name: "ESPN HD"}}}
	eng := New(fc, nil, nil, nil, 2)
	rule := espnRule()

	_, rules1, err := eng.Run(context.Background(), []models.Rule{rule}, models.ModeExecute, "test")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	createdID := rules1[0].ManagedChannelIDs[0]

	// Second run: the stream no longer exists upstream, so the channel the
	// rule created should now be an orphan and get deleted.
	fc.streams = nil
	exec2, rules2, err := eng.Run(context.Background(), rules1, models.ModeExecute, "test")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(rules2[0].ManagedChannelIDs) != 0 {
		t.Fatalf("expected no managed channels after reconciliation, got %v", rules2[0].ManagedChannelIDs)
	}
	found := false
	for _, id := range fc.deleted {
		if id == createdID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected orphaned channel %d to be deleted, deleted=%v", createdID, fc.deleted)
	}
	_ = exec2
}

func TestRunDryRunDoesNotMutateUpstream(t *testing.T) {
	fc := &fakeClient{streams: []models.Stream{{ID: 1, Name: "ESPN HD"}}}
	eng := New(fc, nil, nil, nil, 2)

	exec, _, err := eng.Run(context.Background(), []models.Rule{espnRule()}, models.ModeDryRun, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.ChannelsCreated != 1 {
		t.Fatalf("expected simulated creation counted, got %+v", exec)
	}
	if len(fc.channels) != 0 {
		t.Fatalf("expected no real channels created in dry run, got %v", fc.channels)
	}
	if len(exec.ExecutionLog) != 0 {
		t.Fatalf("expected dry run to leave ExecutionLog empty, got %+v", exec.ExecutionLog)
	}
	if len(exec.DryRunResults) != 1 {
		t.Fatalf("expected dry run trace in DryRunResults, got %+v", exec.DryRunResults)
	}
}

func TestRunExecuteModeWritesExecutionLogNotDryRunResults(t *testing.T) {
	fc := &fakeClient{streams: []models.Stream{{ID: 1, Name: "ESPN HD"}}}
	eng := New(fc, nil, nil, nil, 2)

	exec, _, err := eng.Run(context.Background(), []models.Rule{espnRule()}, models.ModeExecute, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.DryRunResults) != 0 {
		t.Fatalf("expected execute mode to leave DryRunResults empty, got %+v", exec.DryRunResults)
	}
	if len(exec.ExecutionLog) != 1 {
		t.Fatalf("expected execute mode trace in ExecutionLog, got %+v", exec.ExecutionLog)
	}
}
