package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/flowgraph/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	PollInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PollInterval: 2 * time.Second}
}

// InvocationStore is the slice of the store the loop needs.
type InvocationStore interface {
	ListInvocationsByState(ctx context.Context, state model.InvocationState) ([]*model.Invocation, error)
	UpdateInvocationState(ctx context.Context, id string, state model.InvocationState, message string) error
}

// Observer is notified of every state the loop assigns.
type Observer func(state model.InvocationState)

// Loop implements the Scheduler interface with a polling-based scheduling loop.
type Loop struct {
	store    InvocationStore
	handler  Handler
	config   Config
	logger   *slog.Logger
	observer Observer
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLoop creates a new scheduler loop.
func NewLoop(st InvocationStore, h Handler, cfg Config, logger *slog.Logger) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Loop{
		store:   st,
		handler: h,
		config:  cfg,
		logger:  logger.With("component", "scheduler"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// SetObserver registers fn to be called after each state transition.
func (l *Loop) SetObserver(fn Observer) {
	l.observer = fn
}

// Start begins the scheduling loop. Blocks until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.logger.Info("scheduler started", "poll_interval", l.config.PollInterval)
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopping (context cancelled)")
			close(l.doneCh)
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			close(l.doneCh)
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				l.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for the current tick to finish.
func (l *Loop) Stop() error {
	close(l.stopCh)
	<-l.doneCh
	return nil
}

// Tick dispatches every QUEUED invocation in creation order. A failing
// handler marks only its own invocation FAILED; store errors abort the
// tick.
func (l *Loop) Tick(ctx context.Context) error {
	queued, err := l.store.ListInvocationsByState(ctx, model.InvocationStateQueued)
	if err != nil {
		return fmt.Errorf("list queued: %w", err)
	}

	for _, inv := range queued {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, message := model.InvocationStateScheduled, ""
		if err := l.handler.Dispatch(ctx, inv); err != nil {
			state, message = model.InvocationStateFailed, err.Error()
			l.logger.Warn("dispatch failed", "invocation_id", inv.ID, "error", err)
		}
		if err := l.store.UpdateInvocationState(ctx, inv.ID, state, message); err != nil {
			return fmt.Errorf("update invocation %s: %w", inv.ID, err)
		}
		l.logger.Debug("invocation state changed", "invocation_id", inv.ID, "state", state)
		if l.observer != nil {
			l.observer(state)
		}
	}
	return nil
}
