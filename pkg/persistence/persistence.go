// Package persistence provides the storage abstraction for workflows and their transition history.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/contentflow/pkg/models"
)

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	TransitionRepository() TransitionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflows. State changes go exclusively through
// CompareAndSwapState.
type WorkflowRepository interface {
	// Create stores a new workflow, assigning ID and timestamps when empty.
	Create(ctx context.Context, workflow *models.Workflow) error
	// GetByID returns ErrWorkflowNotFound when no workflow has the given id.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// GetState is a point read of the workflow state.
	GetState(ctx context.Context, id string) (models.State, error)
	// CompareAndSwapState sets the state to next only if it currently equals
	// expected. On success it returns the persisted state and true; on a
	// mismatch (or a missing row) it returns false and changes nothing.
	CompareAndSwapState(ctx context.Context, id string, expected, next models.State) (models.State, bool, error)
	// List returns the workflows of an organization.
	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	// ListStale returns non-terminal workflows last updated before the cutoff.
	ListStale(ctx context.Context, before time.Time, limit int) ([]*models.Workflow, error)
	// CountStale counts every workflow ListStale would match, without a limit.
	CountStale(ctx context.Context, before time.Time) (int, error)
}

// TransitionRepository is the append-only audit store.
type TransitionRepository interface {
	Append(ctx context.Context, record *models.TransitionRecord) error
	// ListByWorkflow returns records oldest first.
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.TransitionRecord, error)
}

// ListWorkflowsOptions filters and pages workflow listings.
type ListWorkflowsOptions struct {
	OrganizationID string
	State          *models.State

	Limit  int
	Offset int
}

// WorkflowListResult is a page of workflows.
type WorkflowListResult struct {
	Workflows   []*models.Workflow
	TotalCount  int64
	HasNextPage bool
}
