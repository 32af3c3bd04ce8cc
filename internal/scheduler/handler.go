package scheduler

import (
	"context"
	"log/slog"

	"github.com/me/flowgraph/pkg/model"
)

// Handler accepts one queued invocation. A nil error marks the invocation
// SCHEDULED; an error marks it FAILED with the error text as its message.
type Handler interface {
	Dispatch(ctx context.Context, inv *model.Invocation) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, inv *model.Invocation) error

// Dispatch calls f.
func (f HandlerFunc) Dispatch(ctx context.Context, inv *model.Invocation) error {
	return f(ctx, inv)
}

// LogHandler accepts every invocation and records it in the log. It stands
// in for a compute backend.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With("component", "dispatch")}
}

// Dispatch implements Handler.
func (h *LogHandler) Dispatch(_ context.Context, inv *model.Invocation) error {
	h.logger.Info("invocation dispatched",
		"id", inv.ID,
		"workflow_id", inv.WorkflowID,
		"history", inv.HistoryName,
		"new_history", inv.NewHistory,
		"steps", len(inv.StepArgs),
	)
	return nil
}
