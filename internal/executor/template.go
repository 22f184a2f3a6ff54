// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package executor

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/tomtom215/dispatchctl/internal/models"
)

// buildTemplateContext produces the fixed variable set create_channel's
// name_template and create_group's name_template expand against.
func buildTemplateContext(stream models.Stream) map[string]string {
	return map[string]string{
		"stream_name":     stream.Name,
		"stream_group":    stream.GroupName,
		"tvg_id":          stream.TVGID,
		"tvg_name":        stream.TVGName,
		"quality":         qualityString(stream.ResolutionHeight),
		"quality_raw":     strconv.Itoa(stream.ResolutionHeight),
		"provider":        stream.ProviderName,
		"provider_id":     strconv.Itoa(stream.ProviderID),
		"normalized_name": stream.NormalizedName,
	}
}

// qualityString derives a human label from a probed resolution height,
// same thresholds as the frontend quality badge.
func qualityString(height int) string {
	switch {
	case height <= 0:
		return ""
	case height >= 2160:
		return "4K"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height >= 480:
		return "480p"
	default:
		return fmt.Sprintf("%dp", height)
	}
}

var templateVarRE = regexp.MustCompile(`\{([^}]+)\}`)

// expandTemplate replaces every {stream_name}-style placeholder in tmpl
// with its value from ctx, or — for {var:NAME} — from customVars. An
// unknown placeholder expands to the empty string rather than being left
// verbatim, so a typo'd template never leaks braces into a live channel
// name.
func expandTemplate(tmpl string, ctx map[string]string, customVars map[string]string) string {
	return templateVarRE.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		if len(key) > 4 && key[:4] == "var:" {
			return customVars[key[4:]]
		}
		return ctx[key]
	})
}

// applyNameTransform applies an optional post-expansion rewrite to a
// template result. Supported params mirror the action's own regex rewrite
// vocabulary so a rule author doesn't need a separate normalization rule
// just to strip a prefix off a generated channel name.
func applyNameTransform(name string, params map[string]any) string {
	if pattern, ok := params["strip_pattern"].(string); ok && pattern != "" {
		if re, err := regexp.Compile(pattern); err == nil {
			name = re.ReplaceAllString(name, "")
		}
	}
	if pattern, ok := params["replace_pattern"].(string); ok && pattern != "" {
		replacement := paramString(params, "replace_value", "")
		if re, err := regexp.Compile(pattern); err == nil {
			name = re.ReplaceAllString(name, replacement)
		}
	}
	if prefix, ok := params["add_prefix"].(string); ok && prefix != "" {
		name = prefix + name
	}
	if suffix, ok := params["add_suffix"].(string); ok && suffix != "" {
		name = name + suffix
	}
	return name
}

// applyChannelNumberInName optionally prepends the assigned channel number
// to a channel's name ("USA Network" -> "4000 - USA Network"), stripping
// any existing numeric prefix first so re-numbering doesn't stack prefixes.
func (e *ActionExecutor) applyChannelNumberInName(name string, number int) string {
	if !e.IncludeChannelNumberInName {
		return name
	}
	sep := e.ChannelNumberSeparator
	if sep == "" {
		sep = "-"
	}
	numberPrefixRE := regexp.MustCompile(`^\d+\s*(?:\||` + regexp.QuoteMeta(sep) + `)\s*`)
	stripped := numberPrefixRE.ReplaceAllString(name, "")
	if stripped == "" {
		stripped = name
	}
	return fmt.Sprintf("%d %s %s", number, sep, stripped)
}
