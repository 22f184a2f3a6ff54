// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

const maxHistoryRecords = 5

// RunRecord is one persisted probe-run summary (spec.md §4.4 "History").
type RunRecord struct {
	StartedAt         time.Time `json:"started_at"`
	DurationSeconds   float64   `json:"duration_seconds"`
	Total             int       `json:"total"`
	SuccessCount      int       `json:"success_count"`
	FailedCount       int       `json:"failed_count"`
	SkippedCount      int       `json:"skipped_count"`
	Status            string    `json:"status"`
	SuccessStreams    []int     `json:"success_streams"`
	FailedStreams     []int     `json:"failed_streams"`
	SkippedStreams    []int     `json:"skipped_streams"`
	ReorderedChannels []int     `json:"reordered_channels"`
	SortConfig        string    `json:"sort_config"`
}

// History reads and appends to the probe_history.json file, keeping only
// the most recent maxHistoryRecords entries.
type History struct {
	path string
}

func NewHistory(configDir string) *History {
	return &History{path: filepath.Join(configDir, "probe_history.json")}
}

func (h *History) load() ([]RunRecord, error) {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prober: read history file: %w", err)
	}
	var records []RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("prober: parse history file: %w", err)
	}
	return records, nil
}

// Append records a completed run, trimming the file down to the last
// maxHistoryRecords entries, oldest first.
func (h *History) Append(rec RunRecord) error {
	records, err := h.load()
	if err != nil {
		return err
	}
	records = append(records, rec)
	if len(records) > maxHistoryRecords {
		records = records[len(records)-maxHistoryRecords:]
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("prober: marshal history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("prober: create config dir: %w", err)
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return fmt.Errorf("prober: write history file: %w", err)
	}
	return nil
}

// Recent returns every stored run record, oldest first.
func (h *History) Recent() ([]RunRecord, error) {
	return h.load()
}
