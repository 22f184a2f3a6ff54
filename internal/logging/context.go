// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Context keys for the three correlation identifiers that thread through
// dispatchctl's pipeline: a persisted Execution (execution_id, once the
// store has assigned one), a pipeline Run, prober sweep or bandwidth-tracker
// poll (run_id, minted at the start of the pass since it has no persisted id
// of its own), and the upstream provider a probe belongs to (provider_id).
type contextKey string

const (
	executionIDKey contextKey = "execution_id"
	runIDKey       contextKey = "run_id"
	providerIDKey  contextKey = "provider_id"
	loggerKey      contextKey = "logger"
)

// NewRunID mints a sweep/probe-pass correlation id — short enough to read in
// a terminal, unique enough not to collide within a log retention window.
func NewRunID() string {
	return uuid.New().String()[:8]
}

// ContextWithExecutionID tags ctx with the persisted Execution.ID a pipeline
// Run is writing to. Call after the store assigns the id (engine.Run itself
// only learns it once SaveExecution returns), so this is set by callers that
// persist before re-entering engine code, not by Run directly.
func ContextWithExecutionID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, executionIDKey, id)
}

// ExecutionIDFromContext retrieves the execution id tagged by
// ContextWithExecutionID. ok is false when ctx carries none.
func ExecutionIDFromContext(ctx context.Context) (id int, ok bool) {
	id, ok = ctx.Value(executionIDKey).(int)
	return id, ok
}

// ContextWithRunID tags ctx with a prober sweep/probe-pass correlation id.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// ContextWithNewRunID tags ctx with a freshly minted run id.
func ContextWithNewRunID(ctx context.Context) context.Context {
	return ContextWithRunID(ctx, NewRunID())
}

// RunIDFromContext retrieves the run id tagged by ContextWithRunID. Returns
// "" when ctx carries none.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithProviderID tags ctx with the upstream provider a bandwidth
// sample or probe belongs to.
func ContextWithProviderID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, providerIDKey, id)
}

// ProviderIDFromContext retrieves the provider id tagged by
// ContextWithProviderID. ok is false when ctx carries none.
func ProviderIDFromContext(ctx context.Context) (id int, ok bool) {
	id, ok = ctx.Value(providerIDKey).(int)
	return id, ok
}

// ContextWithLogger stores a logger in the context, for handlers that build
// a request-scoped logger once and want every downstream call to pick it up
// without re-deriving it.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves a logger from context, falling back to the
// global logger when ctx carries none.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return logger
	}
	return Logger()
}

// Ctx returns a logger with execution_id/run_id/provider_id chained on from
// ctx, whichever of the three are present. This is how engine.Run, the
// prober's sweep loop, and the bandwidth tracker's poll loop tag every log
// line for a given pass without threading the id through every call site
// (spec.md's logging convention: tag pipeline runs, probe sweeps, and
// bandwidth samples with these fields via chained .Str()/.Int() calls, never
// Msgf interpolation).
//
//	logging.Ctx(ctx).Info().Msg("processing")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := LoggerFromContext(ctx).With()

	if executionID, ok := ExecutionIDFromContext(ctx); ok {
		logCtx = logCtx.Int("execution_id", executionID)
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		logCtx = logCtx.Str("run_id", runID)
	}
	if providerID, ok := ProviderIDFromContext(ctx); ok {
		logCtx = logCtx.Int("provider_id", providerID)
	}

	logger := logCtx.Logger()
	return &logger
}

// CtxWith returns a logger context builder with execution_id/run_id/
// provider_id pre-populated from ctx, for callers that need to chain
// additional fields before terminating the event.
//
//	logger := logging.CtxWith(ctx).Str("stream_name", name).Logger()
//	logger.Info().Msg("matched")
func CtxWith(ctx context.Context) zerolog.Context {
	logCtx := LoggerFromContext(ctx).With()

	if executionID, ok := ExecutionIDFromContext(ctx); ok {
		logCtx = logCtx.Int("execution_id", executionID)
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		logCtx = logCtx.Str("run_id", runID)
	}
	if providerID, ok := ProviderIDFromContext(ctx); ok {
		logCtx = logCtx.Int("provider_id", providerID)
	}

	return logCtx
}
