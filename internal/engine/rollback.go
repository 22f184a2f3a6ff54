// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/dispatchctl/internal/logging"
	"github.com/tomtom215/dispatchctl/internal/metrics"
	"github.com/tomtom215/dispatchctl/internal/models"
	"github.com/tomtom215/dispatchctl/internal/upstream"
)

// Rollback undoes a completed (non-dry-run) Execution: every entity it
// created is deleted, in reverse creation order, and every entity it
// modified has its previous_state restored. A 404 on either operation means
// the entity is already gone and is treated as success — rollback is
// idempotent, so retrying a partially-applied rollback is safe. A failure on
// one entity is logged and does not stop the rest: every created and
// modified entity gets an attempt, and the accumulated failures are returned
// together once the whole pass is done (spec.md §7).
func (e *Engine) Rollback(ctx context.Context, exec *models.Execution, actor string) error {
	if exec.Status != models.StatusCompleted {
		return errors.New("engine: only a completed execution can be rolled back")
	}

	ctx = logging.ContextWithExecutionID(ctx, exec.ID)
	var failed int

	for i := len(exec.CreatedEntities) - 1; i >= 0; i-- {
		ent := exec.CreatedEntities[i]
		var err error
		switch ent.Kind {
		case models.EntityChannel:
			err = e.client.DeleteChannel(ctx, ent.ID)
		case models.EntityGroup:
			err = e.client.DeleteChannelGroup(ctx, ent.ID)
		}
		if err != nil && !errors.Is(err, upstream.ErrNotFound) {
			logging.Ctx(ctx).Error().Err(err).Int("entity_id", ent.ID).Str("kind", string(ent.Kind)).Msg("rollback: failed to delete created entity")
			failed++
			continue
		}
	}

	for i := len(exec.ModifiedEntities) - 1; i >= 0; i-- {
		ent := exec.ModifiedEntities[i]
		if ent.Kind != models.EntityChannel || len(ent.PreviousState) == 0 {
			continue
		}
		if _, err := e.client.UpdateChannel(ctx, ent.ID, ent.PreviousState); err != nil && !errors.Is(err, upstream.ErrNotFound) {
			logging.Ctx(ctx).Error().Err(err).Int("entity_id", ent.ID).Msg("rollback: failed to restore previous state")
			failed++
			continue
		}
	}

	now := time.Now()
	exec.RolledBackAt = &now
	exec.RolledBackBy = actor

	if failed > 0 {
		exec.Status = models.StatusRolledBack
		metrics.PipelineRollbacksTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("engine: rollback completed with %d entity failure(s), see logs", failed)
	}

	exec.Status = models.StatusRolledBack
	metrics.PipelineRollbacksTotal.WithLabelValues("succeeded").Inc()
	return nil
}
