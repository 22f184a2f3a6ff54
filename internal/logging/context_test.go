// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewRunID(t *testing.T) {
	t.Parallel()

	id1 := NewRunID()
	id2 := NewRunID()

	if id1 == "" {
		t.Error("expected non-empty run id")
	}
	if len(id1) != 8 {
		t.Errorf("expected 8-character run id, got %d", len(id1))
	}
	if id1 == id2 {
		t.Error("expected unique run ids")
	}
}

func TestExecutionIDContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, ok := ExecutionIDFromContext(ctx); ok {
		t.Error("expected no execution id on a bare context")
	}

	ctx = ContextWithExecutionID(ctx, 42)
	id, ok := ExecutionIDFromContext(ctx)
	if !ok || id != 42 {
		t.Errorf("expected execution id 42, got %d (ok=%v)", id, ok)
	}
}

func TestRunIDContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if id := RunIDFromContext(ctx); id != "" {
		t.Errorf("expected empty run id, got %q", id)
	}

	ctx = ContextWithRunID(ctx, "sweep-123")
	if id := RunIDFromContext(ctx); id != "sweep-123" {
		t.Errorf("expected 'sweep-123', got %q", id)
	}
}

func TestContextWithNewRunID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctx = ContextWithNewRunID(ctx)

	id := RunIDFromContext(ctx)
	if len(id) != 8 {
		t.Errorf("expected 8-character run id, got %q", id)
	}
}

func TestProviderIDContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := ProviderIDFromContext(ctx); ok {
		t.Error("expected no provider id on a bare context")
	}

	ctx = ContextWithProviderID(ctx, 7)
	id, ok := ProviderIDFromContext(ctx)
	if !ok || id != 7 {
		t.Errorf("expected provider id 7, got %d (ok=%v)", id, ok)
	}
}

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	customLogger := zerolog.New(&buf).With().Str("custom", "field").Logger()

	ctx := context.Background()
	ctx = ContextWithLogger(ctx, customLogger)

	retrievedLogger := LoggerFromContext(ctx)
	retrievedLogger.Info().Msg("test")

	output := buf.String()
	if !strings.Contains(output, "custom") {
		t.Errorf("expected custom field in output: %s", output)
	}
}

func TestLoggerFromContextNoLogger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := LoggerFromContext(ctx)

	if logger.GetLevel() == zerolog.Disabled {
		t.Error("expected valid logger")
	}
}

func TestCtxChainsAllThreeIDs(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	ctx := context.Background()
	ctx = ContextWithExecutionID(ctx, 99)
	ctx = ContextWithRunID(ctx, "run-abc")
	ctx = ContextWithProviderID(ctx, 3)

	Ctx(ctx).Info().Msg("pipeline pass")

	output := buf.String()
	for _, want := range []string{`"execution_id":99`, `"run_id":"run-abc"`, `"provider_id":3`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestCtxOmitsAbsentIDs(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	Ctx(context.Background()).Info().Msg("no ids")

	output := buf.String()
	for _, absent := range []string{"execution_id", "run_id", "provider_id"} {
		if strings.Contains(output, absent) {
			t.Errorf("did not expect %s in output: %s", absent, output)
		}
	}
}

func TestCtxWith(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	ctx := context.Background()
	ctx = ContextWithRunID(ctx, "run-789")

	logger := CtxWith(ctx).Str("extra", "field").Logger()
	logger.Info().Msg("ctxwith test")

	output := buf.String()
	if !strings.Contains(output, "run-789") {
		t.Errorf("expected run_id in output: %s", output)
	}
	if !strings.Contains(output, "extra") {
		t.Errorf("expected extra field in output: %s", output)
	}
}
