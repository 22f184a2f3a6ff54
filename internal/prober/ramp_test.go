// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"testing"
	"time"
)

func TestRampController_RampsUpAfterSuccessWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRampController(func() time.Time { return now })

	const provider = 1
	const maxStreams = 5

	// wantLimits[i] is the limit in force when stream i+1 is dispatched,
	// i.e. after i successes: the limit rises after every third success.
	wantLimits := []int{1, 1, 1, 2, 2, 2, 3}
	for i, want := range wantLimits {
		got := r.state(provider).currentLimit
		if got != want {
			t.Fatalf("after %d successes: currentLimit = %d, want %d", i, got, want)
		}
		r.reserve(provider)
		r.release(provider, maxStreams, true, "")
	}
}

func TestRampController_OverloadRampsDownAndHolds(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRampController(func() time.Time { return now })

	const provider = 1
	const maxStreams = 5

	// Ramp up to 2 first (three successes).
	for i := 0; i < 3; i++ {
		r.reserve(provider)
		r.release(provider, maxStreams, true, "")
	}
	if got := r.state(provider).currentLimit; got != 2 {
		t.Fatalf("currentLimit before overload = %d, want 2", got)
	}

	r.reserve(provider)
	r.release(provider, maxStreams, false, ClassOverload)

	st := r.state(provider)
	if st.currentLimit != 1 {
		t.Errorf("currentLimit after overload = %d, want 1", st.currentLimit)
	}
	if !now.Before(st.holdUntil) {
		t.Error("expected the account to be held after an overload failure")
	}
	if r.canDispatch(provider) {
		t.Error("canDispatch should be false while the account is held")
	}
}

func TestRampController_NonOverloadFailureResetsStreakOnly(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRampController(func() time.Time { return now })

	const provider = 1
	r.reserve(provider)
	r.release(provider, 5, true, "")
	r.reserve(provider)
	r.release(provider, 5, false, ClassPermanent)

	st := r.state(provider)
	if st.currentLimit != 1 {
		t.Errorf("currentLimit = %d, want unchanged at 1", st.currentLimit)
	}
	if !st.holdUntil.IsZero() {
		t.Error("a non-overload failure should not hold the account")
	}
	if st.consecutiveSuccesses != 0 {
		t.Errorf("consecutiveSuccesses = %d, want reset to 0", st.consecutiveSuccesses)
	}
}

func TestRampController_UnlimitedCapsAtRampUnlimitedCap(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRampController(func() time.Time { return now })

	const provider = 1
	for i := 0; i < 20; i++ {
		r.reserve(provider)
		r.release(provider, 0, true, "")
	}
	if got := r.state(provider).currentLimit; got != rampUnlimitedCap {
		t.Errorf("currentLimit = %d, want capped at %d", got, rampUnlimitedCap)
	}
}

func TestRampController_HoldExpiresAfterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRampController(func() time.Time { return now })

	const provider = 1
	r.reserve(provider)
	r.release(provider, 5, false, ClassOverload)

	if r.canDispatch(provider) {
		t.Fatal("expected the account to be held immediately after overload")
	}
	now = now.Add(rampFailureHoldSeconds*time.Second + time.Millisecond)
	if !r.canDispatch(provider) {
		t.Error("expected the hold to have expired")
	}
}
