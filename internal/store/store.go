package store

import (
	"context"

	"github.com/me/flowgraph/pkg/model"
)

// Store defines the persistence layer for saved workflows and their
// invocations.
type Store interface {
	// Workflow CRUD
	CreateWorkflow(ctx context.Context, wf *model.StoredWorkflow) error
	GetWorkflow(ctx context.Context, id string) (*model.StoredWorkflow, error)
	ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.StoredWorkflow, int, error)
	UpdateWorkflow(ctx context.Context, wf *model.StoredWorkflow) error
	DeleteWorkflow(ctx context.Context, id string) error

	// Invocation operations
	CreateInvocation(ctx context.Context, inv *model.Invocation) error
	GetInvocation(ctx context.Context, id string) (*model.Invocation, error)
	ListInvocations(ctx context.Context, workflowID string, opts model.ListOptions) ([]*model.Invocation, int, error)
	ListInvocationsByState(ctx context.Context, state model.InvocationState) ([]*model.Invocation, error)
	UpdateInvocationState(ctx context.Context, id string, state model.InvocationState, message string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
