// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package rules

import (
	"regexp"
	"strings"
)

// qualitySuffixes are stripped from the tail of a name when deriving its
// core name for merge_streams' fallback channel lookup. Order doesn't
// matter — every suffix is tried until none match.
var qualitySuffixes = []string{
	"UHD", "FHD", "4K", "HD", "SD", "RAW", "1080P", "1080I", "720P", "480P", "2160P",
}

var coreNameTrailingTagRE = func() *regexp.Regexp {
	alts := make([]string, len(qualitySuffixes))
	for i, s := range qualitySuffixes {
		alts[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(`(?i)[\s\-_|:]*\(?\b(` + strings.Join(alts, "|") + `)\)?\s*$`)
}()

var coreNameWhitespaceRE = regexp.MustCompile(`\s+`)

// ExtractCoreName reduces name to a bare identity for the merge_streams
// core-name fallback: it strips any leading numeric channel prefix
// ("107 | ") and repeatedly strips trailing quality tags ("ESPN HD (UHD)"
// -> "ESPN"), converting superscript quality markers first so ᴴᴰ-style
// suffixes are caught the same way. Callers still try a deparenthesized
// variant of the result themselves when this doesn't find a match.
func ExtractCoreName(name string) string {
	n := convertSuperscripts(name)
	n = leadingChannelNumberRE.ReplaceAllString(n, "")
	for {
		stripped := coreNameTrailingTagRE.ReplaceAllString(n, "")
		if stripped == n {
			break
		}
		n = stripped
	}
	n = coreNameWhitespaceRE.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}
