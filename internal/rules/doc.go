// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

// Package rules implements the two name-matching primitives shared by the
// evaluator, the executor's merge-by-name fallback, and the normalizer:
// TagRegistry resolves tag_in/tag_group conditions and the FCC call-sign
// cascade used to fall back-match local broadcast affiliates; Normalizer
// applies an ordered sequence of regex/contains/prefix/suffix rewrite rules
// to a raw stream name to produce the NormalizedName the rest of the
// pipeline matches and sorts on.
//
// Both types are grounded on original_source/backend/normalization_engine.py,
// reworked from a per-request SQLAlchemy-backed engine into an in-memory
// registry loaded once per pipeline run from internal/store.
package rules
