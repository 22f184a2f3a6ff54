// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package models

import "time"

// ProbeStatus is the outcome of one ffprobe attempt against a stream.
type ProbeStatus string

const (
	ProbeOK         ProbeStatus = "ok"
	ProbeFailed     ProbeStatus = "failed"
	ProbeTimeout    ProbeStatus = "timeout"
	ProbePending    ProbeStatus = "pending"
	ProbeDismissed  ProbeStatus = "dismissed"
)

// StreamStats is the StreamProber's durable finding for one stream: the
// codec/resolution/bitrate ffprobe reported, plus the retry bookkeeping the
// ramp-up controller needs to decide whether a stream is worth probing
// again. Dismiss (spec.md's distillation omits it; recovered from
// original_source/stream_checker.py's "ignore_stream" column) lets an
// operator flag a chronically-failing stream; the flag is recorded and
// listed, but the prober and the engine do not consult it.
type StreamStats struct {
	StreamID        int
	ProviderID      int
	Status          ProbeStatus
	VideoCodec      string
	AudioCodec      string
	ResolutionWidth int
	ResolutionHeight int
	BitrateKbps     int
	MeasuredMbps    float64
	FrameRate       float64
	AudioChannels   int
	ConsecutiveFails int
	LastError       string
	LastProbedAt    time.Time
	LastSuccessAt   *time.Time
	Dismissed       bool
	DismissedAt     *time.Time
	DismissedBy     string
	DismissedReason string
}

// Dismiss records who dismissed the stream, when and why. It does not erase
// the last known measurement — Status is left untouched.
func (s *StreamStats) Dismiss(by, reason string, at time.Time) {
	s.Dismissed = true
	s.DismissedAt = &at
	s.DismissedBy = by
	s.DismissedReason = reason
}

// Undismiss clears a prior Dismiss and its who/when/why fields.
func (s *StreamStats) Undismiss() {
	s.Dismissed = false
	s.DismissedAt = nil
	s.DismissedBy = ""
	s.DismissedReason = ""
}
