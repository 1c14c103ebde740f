package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/contentflow/pkg/identity"
	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/progress"
	"github.com/dukex/contentflow/pkg/registry"
	"github.com/dukex/contentflow/pkg/workflow"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Workflow exposes workflow operations scoped to the caller's organization.
// A workflow owned by another organization is reported as not found.
type Workflow struct {
	persistence persistence.Persistence
	engine      *workflow.Engine
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, engine *workflow.Engine) *Workflow {
	return &Workflow{
		persistence: persistence,
		engine:      engine,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest contains the caller supplied fields of a new workflow.
type CreateWorkflowRequest struct {
	Name    string
	Payload map[string]any
}

// Create starts a workflow at the first stage.
func (w *Workflow) Create(ctx context.Context, actor identity.Actor, req CreateWorkflowRequest) (*models.Workflow, error) {
	if actor.OrganizationID == "" {
		return nil, identity.ErrMissingOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrWorkflowNameRequired
	}

	wf := &models.Workflow{
		Name:           name,
		State:          registry.Initial(),
		OrganizationID: actor.OrganizationID,
		CreatedBy:      actor.UserID,
		Payload:        req.Payload,
	}

	err := w.persistence.WorkflowRepository().Create(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return wf, nil
}

// Get retrieves a workflow of the actor's organization.
func (w *Workflow) Get(ctx context.Context, actor identity.Actor, id string) (*models.Workflow, error) {
	wf, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if wf == nil || wf.OrganizationID != actor.OrganizationID {
		return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
	}

	return wf, nil
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Limit  int
	Offset int
	State  *models.State
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// List retrieves the workflows of the actor's organization, newest first.
func (w *Workflow) List(ctx context.Context, actor identity.Actor, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if actor.OrganizationID == "" {
		return nil, identity.ErrMissingOrganization
	}

	if err := validateListWorkflowsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	result, err := w.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		OrganizationID: actor.OrganizationID,
		State:          req.State,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// validateListWorkflowsRequest validates and sets defaults for the request.
func validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}

	if req.Limit > maxListLimit {
		req.Limit = maxListLimit
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.State != nil && !registry.IsValidState(*req.State) {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"invalid_state",
			fmt.Sprintf("invalid state '%s'", *req.State),
			ErrInvalidState,
		)
	}

	return nil
}

// State returns the current state of a workflow.
func (w *Workflow) State(ctx context.Context, actor identity.Actor, id string) (models.State, error) {
	wf, err := w.Get(ctx, actor, id)
	if err != nil {
		return "", err
	}

	return wf.State, nil
}

// Transition applies a stage completion event.
func (w *Workflow) Transition(ctx context.Context, actor identity.Actor, id string, event models.Event) (models.TransitionResult, error) {
	if event.IsRollback() {
		return models.TransitionResult{}, ErrRollbackNotAllowed
	}

	if _, err := w.Get(ctx, actor, id); err != nil {
		return models.TransitionResult{}, err
	}

	return w.engine.Transition(ctx, id, event, models.TransitionOptions{
		TriggeredBy: actor.TriggeredBy(),
	})
}

// Rollback rewinds a workflow to an earlier allow-listed stage.
func (w *Workflow) Rollback(ctx context.Context, actor identity.Actor, id string, target models.State) (models.TransitionResult, error) {
	if _, err := w.Get(ctx, actor, id); err != nil {
		return models.TransitionResult{}, err
	}

	return w.engine.Transition(ctx, id, models.EventHumanReset, models.TransitionOptions{
		RollbackTarget: &target,
		TriggeredBy:    actor.TriggeredBy(),
	})
}

// History returns the audit records of a workflow, oldest first.
func (w *Workflow) History(ctx context.Context, actor identity.Actor, id string) ([]*models.TransitionRecord, error) {
	if _, err := w.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	records, err := w.persistence.TransitionRepository().ListByWorkflow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions of workflow %s: %w", id, err)
	}

	return records, nil
}

// Progress projects the current state of a workflow for display.
func (w *Workflow) Progress(ctx context.Context, actor identity.Actor, id string) (progress.View, error) {
	wf, err := w.Get(ctx, actor, id)
	if err != nil {
		return progress.View{}, err
	}

	return progress.NewView(wf.ID, wf.State), nil
}
