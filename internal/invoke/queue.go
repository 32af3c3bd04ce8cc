package invoke

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/flowgraph/pkg/model"
)

// InvocationStore persists invocations.
type InvocationStore interface {
	CreateInvocation(ctx context.Context, inv *model.Invocation) error
}

// QueueExecutor records each invocation as queued for the dispatch loop to
// pick up.
type QueueExecutor struct {
	store  InvocationStore
	logger *slog.Logger
}

// NewQueueExecutor creates a QueueExecutor.
func NewQueueExecutor(st InvocationStore, logger *slog.Logger) *QueueExecutor {
	return &QueueExecutor{store: st, logger: logger.With("component", "queue")}
}

// Invoke implements Executor.
func (q *QueueExecutor) Invoke(ctx context.Context, inv *model.Invocation) error {
	inv.State = model.InvocationStateQueued
	if err := q.store.CreateInvocation(ctx, inv); err != nil {
		return fmt.Errorf("queue invocation: %w", err)
	}
	q.logger.Debug("invocation queued", "id", inv.ID, "workflow_id", inv.WorkflowID)
	return nil
}
