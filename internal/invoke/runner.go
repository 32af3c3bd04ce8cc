// Package invoke turns a run request for a saved workflow into concrete
// invocations and hands each to an Executor.
package invoke

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/me/flowgraph/internal/batch"
	"github.com/me/flowgraph/internal/ordering"
	"github.com/me/flowgraph/pkg/model"
)

// Parameter keys understood by Run.
const (
	ReplacementPrefix = "wf_parm|"
	NewHistoryKey     = "new_history"
	NewHistoryNameKey = "new_history_name"
)

// Executor schedules one concrete run of a workflow.
type Executor interface {
	Invoke(ctx context.Context, inv *model.Invocation) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, inv *model.Invocation) error

// Invoke calls f.
func (f ExecutorFunc) Invoke(ctx context.Context, inv *model.Invocation) error {
	return f(ctx, inv)
}

// Request is a run request for one workflow.
type Request struct {
	WorkflowID string
	// Params are the submitted form values: "<stepID>|<arg>" step
	// arguments, "wf_parm|<name>" replacements, input bindings and the
	// new history switches.
	Params map[string]any
	// HistoryID and HistoryName identify the current history, used when
	// no new history is requested.
	HistoryID   string
	HistoryName string
}

// Runner expands run requests and invokes each resulting run.
type Runner struct {
	exec   Executor
	names  NameLookup
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner creates a Runner. names resolves multi-input values to the
// display names used in new history names; nil falls back to the values
// themselves.
func NewRunner(exec Executor, names NameLookup, logger *slog.Logger) *Runner {
	if names == nil {
		names = FallbackNames
	}
	return &Runner{
		exec:   exec,
		names:  names,
		logger: logger.With("component", "invoke"),
		now:    time.Now,
	}
}

// Run invokes g once per combination of the submitted multi-valued inputs.
// The graph must have steps, no cycles and no step errors. Runs are
// invoked in expansion order; the first failure stops the batch and the
// invocations made so far are returned with the error.
func (r *Runner) Run(ctx context.Context, g *model.Graph, req Request) ([]*model.Invocation, error) {
	if apiErr := ordering.CheckRunnable(g, "run"); apiErr != nil {
		return nil, apiErr
	}
	exp, err := batch.Expand(req.Params)
	if err != nil {
		return nil, err
	}

	steps := g.Steps()
	var invocations []*model.Invocation
	for params, multiKeys := range exp.All() {
		if err := ctx.Err(); err != nil {
			return invocations, err
		}

		inv := &model.Invocation{
			ID:           uuid.New().String(),
			WorkflowID:   req.WorkflowID,
			WorkflowName: g.Name,
			HistoryID:    req.HistoryID,
			HistoryName:  req.HistoryName,
			State:        model.InvocationStateQueued,
			Assignment:   params,
			StepArgs:     make(map[string]map[string]any, len(steps)),
			Replacements: prefixed(params, ReplacementPrefix),
		}
		inv.CreatedAt = r.now().UTC()
		inv.UpdatedAt = inv.CreatedAt
		for _, s := range steps {
			inv.StepArgs[s.ID] = prefixed(params, s.ID+"|")
		}
		if _, ok := params[NewHistoryKey]; ok {
			inv.NewHistory = true
			inv.HistoryID = ""
			inv.HistoryName = r.historyName(g.Name, params, multiKeys)
		}

		if err := r.exec.Invoke(ctx, inv); err != nil {
			return invocations, fmt.Errorf("invoke run %d of %d: %w", len(invocations)+1, exp.Len(), err)
		}
		r.logger.Debug("workflow invoked", "workflow_id", req.WorkflowID, "invocation_id", inv.ID, "history", inv.HistoryName)
		invocations = append(invocations, inv)
	}
	r.logger.Info("workflow run expanded", "workflow_id", req.WorkflowID, "runs", len(invocations))
	return invocations, nil
}

func (r *Runner) historyName(workflowName string, params map[string]any, multiKeys []string) string {
	name, _ := params[NewHistoryNameKey].(string)
	if name == "" {
		name = fmt.Sprintf("History from %s workflow", workflowName)
	}
	names := make([]string, len(multiKeys))
	for i, key := range multiKeys {
		names[i] = r.names.Name(params[key])
	}
	return name + batch.RunNameSuffix(names)
}

// prefixed returns the entries of params whose key starts with prefix,
// with the prefix removed.
func prefixed(params map[string]any, prefix string) map[string]any {
	out := make(map[string]any)
	for k, v := range params {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			out[rest] = v
		}
	}
	return out
}
