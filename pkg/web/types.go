// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/registry"
	"github.com/go-playground/validator/v10"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name    string         `json:"name"              validate:"required,min=3,max=200"`
	Payload map[string]any `json:"payload,omitempty"`
}

// TransitionRequest represents the request body for applying a stage completion event.
type TransitionRequest struct {
	Event models.Event `json:"event" validate:"required,pipeline_event"`
}

// RollbackRequest represents the request body for a human reset.
type RollbackRequest struct {
	Target models.State `json:"target" validate:"required,pipeline_state"`
}

// StateResponse is the body of GET /workflows/:id/state.
type StateResponse struct {
	WorkflowID string       `json:"workflow_id"`
	State      models.State `json:"state"`
}

// AllowedEventsResponse is the body of GET /states/:state/events. The list is
// advisory: the workflow may move before the caller acts on it.
type AllowedEventsResponse struct {
	State    models.State   `json:"state"`
	Events   []models.Event `json:"events"`
	Terminal bool           `json:"terminal"`
}

// NewValidator returns a validator that knows the pipeline vocabulary.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("pipeline_event", func(fl validator.FieldLevel) bool {
		return models.Event(fl.Field().String()).IsKnown()
	})
	_ = v.RegisterValidation("pipeline_state", func(fl validator.FieldLevel) bool {
		return registry.IsValidState(models.State(fl.Field().String()))
	})

	return v
}
