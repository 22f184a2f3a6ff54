// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package prober

import (
	"github.com/tomtom215/dispatchctl/internal/bandwidth"
	"github.com/tomtom215/dispatchctl/internal/models"
)

// lowBitrateFraction is how far below the resolution tier's expected direct-
// play bandwidth a measured bitrate has to fall before probeWithRetry logs a
// sanity warning. 0.2 catches the common ffprobe failure mode of sampling
// during a stall rather than steady-state playback, without flagging every
// stream that simply encodes leaner than the tier's typical profile.
const lowBitrateFraction = 0.2

// resolutionTier buckets a probed height into the tier names
// bandwidth.EstimateBandwidth recognizes.
func resolutionTier(height int) string {
	switch {
	case height >= 2160:
		return "4k"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	default:
		return "sd"
	}
}

// bandwidthSanityCheck flags a probe result whose measured bitrate is far
// below what its resolution normally requires for direct play — ffprobe
// measured during a stall rather than steady playback is the usual cause.
// Returns the warning message and true when the sample looks suspect; stats
// with no resolution or bitrate reading (probe failures) are never flagged.
func bandwidthSanityCheck(stats models.StreamStats) (msg string, expectedGBPerHour float64, flagged bool) {
	if stats.ResolutionHeight <= 0 || stats.BitrateKbps <= 0 {
		return "", 0, false
	}
	expectedMbps := bandwidth.EstimateBandwidth(resolutionTier(stats.ResolutionHeight), "direct play")
	measuredMbps := float64(stats.BitrateKbps) / 1000
	if measuredMbps >= expectedMbps*lowBitrateFraction {
		return "", 0, false
	}
	expectedGBPerHour = bandwidth.CalculateBandwidthGB(expectedMbps, 3600)
	return "probe: measured bitrate is far below what this resolution typically requires for direct play", expectedGBPerHour, true
}
