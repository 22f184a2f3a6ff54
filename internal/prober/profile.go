// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"regexp"
	"strings"
	"sync"

	"github.com/tomtom215/dispatchctl/internal/models"
)

// DistributionStrategy picks which of an account's profiles a probe lands
// on (spec.md §4.4 "Profile distribution").
type DistributionStrategy string

const (
	DistributionFillFirst   DistributionStrategy = "fill_first"
	DistributionRoundRobin  DistributionStrategy = "round_robin"
	DistributionLeastLoaded DistributionStrategy = "least_loaded"
)

const hdhomerunMaxConcurrent = 2

// profileState is the live concurrency bookkeeping for one profile: the
// upstream's reported active-connection count as last passed to
// setUpstreamUsed, plus our own in-flight reservations. The probe path does
// not call setUpstreamUsed, so during a run only the reservations count.
type profileState struct {
	mu           sync.Mutex
	upstreamUsed int
	reserved     int
}

// profileSelector chooses a profile for each probe against one provider
// account, enforcing per-profile capacity and the HDHomeRun concurrency
// cap.
type profileSelector struct {
	mu       sync.Mutex
	strategy DistributionStrategy
	states   map[int]*profileState // profile id -> state
	rrCursor int
}

func newProfileSelector(strategy DistributionStrategy) *profileSelector {
	if strategy == "" {
		strategy = DistributionFillFirst
	}
	return &profileSelector{strategy: strategy, states: make(map[int]*profileState)}
}

func (s *profileSelector) stateFor(profileID int) *profileState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[profileID]
	if !ok {
		st = &profileState{}
		s.states[profileID] = st
	}
	return st
}

// setUpstreamUsed records the upstream's reported active-connection count
// for profileID.
func (s *profileSelector) setUpstreamUsed(profileID, used int) {
	st := s.stateFor(profileID)
	st.mu.Lock()
	st.upstreamUsed = used
	st.mu.Unlock()
}

func (s *profileSelector) capacity(p models.Profile) (used, limit int, unlimited bool) {
	st := s.stateFor(p.ID)
	st.mu.Lock()
	defer st.mu.Unlock()
	used = st.upstreamUsed + st.reserved
	if p.MaxStreams <= 0 {
		return used, 0, true
	}
	return used, p.MaxStreams, false
}

func isHDHomeRun(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, ":5004/") || strings.Contains(lower, "hdhomerun")
}

// hasCapacity reports whether profile p can take one more probe, folding in
// the HDHomeRun concurrency ceiling when streamURL looks like a tuner feed.
func (s *profileSelector) hasCapacity(p models.Profile, streamURL string) bool {
	if !p.IsActive {
		return false
	}
	used, limit, unlimited := s.capacity(p)
	if isHDHomeRun(streamURL) && used >= hdhomerunMaxConcurrent {
		return false
	}
	if unlimited {
		return true
	}
	return used < limit
}

// reserve marks one in-flight probe against p's capacity; release undoes it.
func (s *profileSelector) reserve(p models.Profile) {
	st := s.stateFor(p.ID)
	st.mu.Lock()
	st.reserved++
	st.mu.Unlock()
}

func (s *profileSelector) release(p models.Profile) {
	st := s.stateFor(p.ID)
	st.mu.Lock()
	if st.reserved > 0 {
		st.reserved--
	}
	st.mu.Unlock()
}

// Select picks a profile from candidates with capacity for streamURL, or
// ok=false if none currently has room.
func (s *profileSelector) Select(candidates []models.Profile, streamURL string) (models.Profile, bool) {
	var eligible []models.Profile
	for _, p := range candidates {
		if s.hasCapacity(p, streamURL) {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return models.Profile{}, false
	}

	switch s.strategy {
	case DistributionRoundRobin:
		s.mu.Lock()
		idx := s.rrCursor % len(eligible)
		s.rrCursor++
		s.mu.Unlock()
		return eligible[idx], true

	case DistributionLeastLoaded:
		best := eligible[0]
		bestRoom := s.room(best)
		for _, p := range eligible[1:] {
			if room := s.room(p); room > bestRoom {
				best = p
				bestRoom = room
			}
		}
		return best, true

	default: // fill_first
		return eligible[0], true
	}
}

// room returns how much spare capacity a profile has; unlimited profiles
// report a very large number so they always win least_loaded comparisons.
func (s *profileSelector) room(p models.Profile) int {
	used, limit, unlimited := s.capacity(p)
	if unlimited {
		return 1 << 30
	}
	return limit - used
}

// rewriteURL applies a profile's configured search/replace regex to a
// stream URL before probing (original_source/stream_prober.py's
// search_pattern/replace_pattern, carried forward per SPEC_FULL.md item 4).
func rewriteURL(p models.Profile, streamURL string) string {
	if p.SearchPattern == "" {
		return streamURL
	}
	re, err := regexp.Compile(p.SearchPattern)
	if err != nil {
		return streamURL
	}
	return re.ReplaceAllString(streamURL, p.ReplacePattern)
}
