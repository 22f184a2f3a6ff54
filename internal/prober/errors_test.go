// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"context"
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	bg := context.Background()
	cases := []struct {
		name       string
		statusCode int
		stderr     string
		cause      error
		want       Classification
	}{
		{"429 is overload", 429, "", errors.New("boom"), ClassOverload},
		{"502 is overload", 502, "", errors.New("boom"), ClassOverload},
		{"404 is permanent", 404, "", errors.New("boom"), ClassPermanent},
		{"connection reset is transient", 0, "Connection reset by peer", errors.New("x"), ClassTransient},
		{"broken pipe is transient", 0, "broken pipe", errors.New("x"), ClassTransient},
		{"unrecognized error with a cause is transient", 0, "", errors.New("mystery"), ClassTransient},
		{"no cause and no markers is permanent", 0, "", nil, ClassPermanent},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := classify(bg, c.statusCode, c.stderr, c.cause)
			if got != c.want {
				t.Errorf("classify(%d, %q, %v) = %v, want %v", c.statusCode, c.stderr, c.cause, got, c.want)
			}
		})
	}
}

func TestClassify_ContextDeadlineIsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	got := classify(ctx, 0, "", ctx.Err())
	if got != ClassTimeout {
		t.Errorf("classify with an expired deadline = %v, want %v", got, ClassTimeout)
	}
}

func TestRetryable(t *testing.T) {
	cases := map[Classification]bool{
		ClassTransient: true,
		ClassOverload:  false,
		ClassTimeout:   false,
		ClassPermanent: false,
	}
	for cls, want := range cases {
		if got := retryable(cls); got != want {
			t.Errorf("retryable(%v) = %v, want %v", cls, got, want)
		}
	}
}

func TestOverload(t *testing.T) {
	if !overload(ClassOverload) {
		t.Error("overload(ClassOverload) should be true")
	}
	if overload(ClassTransient) {
		t.Error("overload(ClassTransient) should be false")
	}
}

func TestProbeError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("underlying failure")
	err := &ProbeError{StreamID: 42, Classification: ClassTransient, Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if err.Error() == "" {
		t.Error("expected a non-empty error message")
	}
}
