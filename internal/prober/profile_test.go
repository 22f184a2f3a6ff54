// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"testing"

	"github.com/tomtom215/dispatchctl/internal/models"
)

func TestIsHDHomeRun(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"http://192.168.1.50:5004/auto/v1", true},
		{"http://tuner.local/hdhomerun/channel", true},
		{"http://provider.example/stream.m3u8", false},
	}
	for _, c := range cases {
		if got := isHDHomeRun(c.url); got != c.want {
			t.Errorf("isHDHomeRun(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestProfileSelector_FillFirst(t *testing.T) {
	s := newProfileSelector(DistributionFillFirst)
	profiles := []models.Profile{
		{ID: 1, IsActive: true, MaxStreams: 1},
		{ID: 2, IsActive: true, MaxStreams: 1},
	}

	p, ok := s.Select(profiles, "http://x/stream")
	if !ok || p.ID != 1 {
		t.Fatalf("expected profile 1 to win fill_first, got %+v ok=%v", p, ok)
	}

	s.reserve(p)
	p2, ok := s.Select(profiles, "http://x/stream")
	if !ok || p2.ID != 2 {
		t.Fatalf("expected profile 2 once profile 1 is full, got %+v ok=%v", p2, ok)
	}
}

func TestProfileSelector_LeastLoaded(t *testing.T) {
	s := newProfileSelector(DistributionLeastLoaded)
	profiles := []models.Profile{
		{ID: 1, IsActive: true, MaxStreams: 10},
		{ID: 2, IsActive: true, MaxStreams: 10},
	}
	s.setUpstreamUsed(1, 8)
	s.setUpstreamUsed(2, 2)

	p, ok := s.Select(profiles, "http://x/stream")
	if !ok || p.ID != 2 {
		t.Fatalf("expected the least-loaded profile (2), got %+v ok=%v", p, ok)
	}
}

func TestProfileSelector_RoundRobinAdvances(t *testing.T) {
	s := newProfileSelector(DistributionRoundRobin)
	profiles := []models.Profile{
		{ID: 1, IsActive: true, MaxStreams: 10},
		{ID: 2, IsActive: true, MaxStreams: 10},
	}

	var seen []int
	for i := 0; i < 4; i++ {
		p, ok := s.Select(profiles, "http://x/stream")
		if !ok {
			t.Fatal("expected a profile to be selected")
		}
		seen = append(seen, p.ID)
	}
	if seen[0] == seen[1] {
		t.Errorf("round_robin should alternate profiles, got %v", seen)
	}
}

func TestProfileSelector_HDHomeRunCapsAtTwo(t *testing.T) {
	s := newProfileSelector(DistributionFillFirst)
	profiles := []models.Profile{{ID: 1, IsActive: true, MaxStreams: 10}}
	url := "http://tuner.local:5004/auto/v1"

	s.setUpstreamUsed(1, 2)
	if _, ok := s.Select(profiles, url); ok {
		t.Error("expected no capacity once 2 HDHomeRun probes are already active")
	}

	s.setUpstreamUsed(1, 1)
	if _, ok := s.Select(profiles, url); !ok {
		t.Error("expected capacity for a 2nd HDHomeRun probe")
	}
}

func TestProfileSelector_NoCandidatesWhenAllFull(t *testing.T) {
	s := newProfileSelector(DistributionFillFirst)
	profiles := []models.Profile{{ID: 1, IsActive: true, MaxStreams: 1}}
	s.setUpstreamUsed(1, 1)

	if _, ok := s.Select(profiles, "http://x/stream"); ok {
		t.Error("expected no eligible profile when every profile is full")
	}
}

func TestRewriteURL(t *testing.T) {
	p := models.Profile{SearchPattern: `^http://old\.example`, ReplacePattern: "http://new.example"}
	got := rewriteURL(p, "http://old.example/stream.m3u8")
	want := "http://new.example/stream.m3u8"
	if got != want {
		t.Errorf("rewriteURL = %q, want %q", got, want)
	}

	noPattern := models.Profile{}
	if got := rewriteURL(noPattern, "http://x/y"); got != "http://x/y" {
		t.Errorf("rewriteURL with no pattern should pass the URL through unchanged, got %q", got)
	}
}
