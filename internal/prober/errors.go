// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Classification is the error kind a failed probe falls into, driving the
// retry and ramp-up decisions in spec.md §4.4/§7.
type Classification string

const (
	ClassTransient Classification = "transient"
	ClassTimeout   Classification = "timeout"
	ClassOverload  Classification = "overload"
	ClassPermanent Classification = "permanent"
)

// ProbeError wraps a probe subprocess failure with the classification the
// dispatch loop and ramp controller need to react correctly.
type ProbeError struct {
	StreamID       int
	Classification Classification
	Cause          error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("prober: stream %d probe failed (%s): %v", e.StreamID, e.Classification, e.Cause)
}

func (e *ProbeError) Unwrap() error { return e.Cause }

// transientMarkers are substrings of ffprobe stderr that spec.md §4.4 names
// as retryable, in contrast to a 404 or a connection timeout.
var transientMarkers = []string{
	"input/output error",
	"connection reset",
	"broken pipe",
	"server returned 5",
	"stream ends prematurely",
	"eof",
}

// classify inspects a probe failure and assigns it a Classification. It is
// the single place the retry policy and the ramp-up controller both consult
// so the two never disagree about what kind of failure just happened.
func classify(ctx context.Context, statusCode int, stderr string, cause error) Classification {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(cause, context.DeadlineExceeded) {
		return ClassTimeout
	}
	if statusCode == 429 || (statusCode >= 500 && statusCode < 600) {
		return ClassOverload
	}
	if statusCode == 404 {
		return ClassPermanent
	}
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "404") || strings.Contains(lower, "not found") {
		return ClassPermanent
	}
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return ClassTransient
		}
	}
	if cause != nil {
		return ClassTransient
	}
	return ClassPermanent
}

// retryable reports whether the retry policy should attempt this stream
// again. Only the transient class retries — overload failures go straight
// to the ramp controller's hold, and timeouts/404s are explicitly excluded
// by spec.md §4.4.
func retryable(c Classification) bool {
	return c == ClassTransient
}

// overload reports whether a failure should ramp the account down and hold
// it, per spec.md §4.4's "HTTP 429 or 5xx" rule.
func overload(c Classification) bool {
	return c == ClassOverload
}
