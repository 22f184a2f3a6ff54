// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package executor

import (
	"regexp"
	"strings"

	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/rules"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

// channelProviderKey is the (channel, provider) pair used to enforce
// merge_streams' max_streams_per_channel cap.
type channelProviderKey struct {
	channelID  int
	providerID int
}

// ActionExecutor carries out one pipeline run's action lists against the
// upstream. It is built once per run from a snapshot of existing channels
// and groups, and accumulates the entities it creates as the run proceeds
// so later actions (in the same or a later rule) see them.
type ActionExecutor struct {
	client     upstream.Client
	normalizer *rules.Normalizer
	registry   *rules.TagRegistry

	channelByID             map[int]*models.Channel
	channelByName           map[string]*models.Channel
	baseNameToChannel       map[string]*models.Channel
	normalizedNameToChannel map[string]*models.Channel
	coreNameToChannel       map[string]*models.Channel
	callsignToChannel       map[string]*models.Channel

	groupByID   map[int]*models.Group
	groupByName map[string]*models.Group

	createdChannels map[string]*models.Channel
	createdGroups   map[string]*models.Group

	usedChannelNumbers map[int]bool
	channelProviderCnt map[channelProviderKey]int

	epgDataBySource map[int][]upstream.EPGProgram

	simCounter int // counts down from -1 for dry-run simulated entity ids

	// DefaultProfileIDs, when non-empty, are enabled in a newly created
	// channel's profiles while every other known profile id is disabled
	// (mirrors _assign_default_profiles).
	DefaultProfileIDs []int
	AllProfileIDs     []int

	// IncludeChannelNumberInName and ChannelNumberSeparator control the
	// channel-number-in-name rewrite applied after a number is assigned.
	IncludeChannelNumberInName bool
	ChannelNumberSeparator     string
}

// NewActionExecutor builds the lookup indices from a run's channel/group
// snapshot. streamProviderByID maps every stream id known to this run to
// its provider id, letting the executor seed per-channel per-provider
// stream counts up front instead of re-fetching each channel's streams
// lazily from the upstream.
func NewActionExecutor(
	client upstream.Client,
	channels []models.Channel,
	groups []models.Group,
	normalizer *rules.Normalizer,
	registry *rules.TagRegistry,
	streamProviderByID map[int]int,
) *ActionExecutor {
	e := &ActionExecutor{
		client:                  client,
		normalizer:              normalizer,
		registry:                registry,
		channelByID:             make(map[int]*models.Channel, len(channels)),
		channelByName:           make(map[string]*models.Channel, len(channels)),
		baseNameToChannel:       make(map[string]*models.Channel, len(channels)),
		normalizedNameToChannel: make(map[string]*models.Channel, len(channels)),
		coreNameToChannel:       make(map[string]*models.Channel, len(channels)),
		callsignToChannel:       make(map[string]*models.Channel, len(channels)),
		groupByID:               make(map[int]*models.Group, len(groups)),
		groupByName:             make(map[string]*models.Group, len(groups)),
		createdChannels:         make(map[string]*models.Channel),
		createdGroups:           make(map[string]*models.Group),
		usedChannelNumbers:      make(map[int]bool, len(channels)),
		channelProviderCnt:      make(map[channelProviderKey]int),
		epgDataBySource:         make(map[int][]upstream.EPGProgram),
		simCounter:              -1,
	}

	for i := range channels {
		ch := &channels[i]
		e.channelByID[ch.ID] = ch
		e.channelByName[strings.ToLower(ch.Name)] = ch
		if ch.ChannelNumber > 0 {
			e.usedChannelNumbers[int(ch.ChannelNumber)] = true
		}

		base := strings.ToLower(leadingNumberRE.ReplaceAllString(ch.Name, ""))
		if base != "" {
			e.baseNameToChannel[base] = ch
		}
		if normalizer != nil {
			norm := strings.ToLower(normalizer.Normalize(ch.Name))
			if norm != "" {
				e.normalizedNameToChannel[norm] = ch
			}
		}
		if core := strings.ToLower(rules.ExtractCoreName(ch.Name)); core != "" {
			e.coreNameToChannel[core] = ch
		}
		if cs := rules.ExtractCallSign(ch.Name); cs != "" {
			e.callsignToChannel[cs] = ch
		}
		for _, sid := range ch.Streams {
			if pid, ok := streamProviderByID[sid]; ok {
				e.channelProviderCnt[channelProviderKey{ch.ID, pid}]++
			}
		}
	}

	for i := range groups {
		g := &groups[i]
		e.groupByID[g.ID] = g
		e.groupByName[strings.ToLower(g.Name)] = g
	}

	return e
}

var leadingNumberRE = regexp.MustCompile(`^\d+\s*\|\s*`)

func (e *ActionExecutor) findChannelByName(name string) *models.Channel {
	lower := strings.ToLower(name)
	if ch, ok := e.createdChannels[lower]; ok {
		return ch
	}
	if ch, ok := e.baseNameToChannel[lower]; ok {
		return ch
	}
	if ch, ok := e.channelByName[lower]; ok {
		return ch
	}
	if ch, ok := e.normalizedNameToChannel[lower]; ok {
		return ch
	}
	return nil
}

func (e *ActionExecutor) findChannelByRegex(pattern string) *models.Channel {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil
	}
	for _, ch := range e.channelByID {
		if re.MatchString(ch.Name) {
			return ch
		}
	}
	for _, ch := range e.createdChannels {
		if re.MatchString(ch.Name) {
			return ch
		}
	}
	return nil
}

func (e *ActionExecutor) findChannelByTVGID(tvgID string) *models.Channel {
	if tvgID == "" {
		return nil
	}
	for _, ch := range e.channelByID {
		if ch.TVGID == tvgID {
			return ch
		}
	}
	for _, ch := range e.createdChannels {
		if ch.TVGID == tvgID {
			return ch
		}
	}
	return nil
}

// ChannelForStream returns whichever channel currently lists stream among
// its streams, checking both the original snapshot and any channel
// created or simulated during this run. Used by the engine's renumbering
// pass to recover, per stream, which channel its rule routed it to.
func (e *ActionExecutor) ChannelForStream(stream models.Stream) *models.Channel {
	for _, ch := range e.channelByID {
		for _, sid := range ch.Streams {
			if sid == stream.ID {
				return ch
			}
		}
	}
	return nil
}

func (e *ActionExecutor) findGroupByName(name string) *models.Group {
	lower := strings.ToLower(name)
	if g, ok := e.createdGroups[lower]; ok {
		return g
	}
	return e.groupByName[lower]
}

// nextSimID returns the next negative placeholder id for a dry-run
// simulated entity, decrementing so a run that simulates several entities
// never collides two of them.
func (e *ActionExecutor) nextSimID() int {
	id := e.simCounter
	e.simCounter--
	return id
}

func parseChannelNumberSpec(spec any, used map[int]bool) int {
	switch v := spec.(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if v == "" || v == "auto" {
			return nextFreeNumber(used, 1)
		}
		if m := rangeSpecRE.FindStringSubmatch(v); m != nil {
			min := atoiOr(m[1], 1)
			max := atoiOr(m[2], min)
			for n := min; n <= max; n++ {
				if !used[n] {
					return n
				}
			}
			return max + 1
		}
		if n, err := parseIntLenient(v); err == nil {
			return n
		}
	}
	return nextFreeNumber(used, 1)
}

var rangeSpecRE = regexp.MustCompile(`^(\d+)-(\d+)$`)

func nextFreeNumber(used map[int]bool, start int) int {
	n := start
	for used[n] {
		n++
	}
	return n
}
