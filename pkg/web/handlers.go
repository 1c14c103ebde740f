// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/contentflow/pkg/identity"
	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/registry"
	"github.com/dukex/contentflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService *services.Workflow
	validator       *validator.Validate
	resolver        identity.Resolver
	logger          *slog.Logger
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	validator *validator.Validate,
	resolver identity.Resolver,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		validator:       validator,
		resolver:        resolver,
		logger:          logger.With("module", "api-handlers"),
	}
}

// RequireActor resolves the caller and stores it in the request context.
func (h *APIHandlers) RequireActor(c fiber.Ctx) error {
	actor, err := h.resolver.Resolve(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	c.SetContext(identity.WithActor(c.Context(), actor))

	return c.Next()
}

func (h *APIHandlers) actor(c fiber.Ctx) identity.Actor {
	actor, _ := identity.FromContext(c.Context())

	return actor
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.List(c.Context(), h.actor(c), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
func parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if stateStr := c.Query("state"); stateStr != "" {
		state := models.State(stateStr)
		req.State = &state
	}

	return req, nil
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), h.actor(c), services.CreateWorkflowRequest{
		Name:    req.Name,
		Payload: req.Payload,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.Get(c.Context(), h.actor(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) GetWorkflowState(c fiber.Ctx) error {
	id := c.Params("id")

	state, err := h.workflowService.State(c.Context(), h.actor(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StateResponse{WorkflowID: id, State: state})
}

func (h *APIHandlers) GetWorkflowProgress(c fiber.Ctx) error {
	view, err := h.workflowService.Progress(c.Context(), h.actor(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) GetWorkflowTransitions(c fiber.Ctx) error {
	records, err := h.workflowService.History(c.Context(), h.actor(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"transitions": records,
		"total_count": len(records),
	})
}

// TransitionWorkflow applies an event. A rejected transition is answered with
// 200 and the current state, since "no change" is a normal outcome.
func (h *APIHandlers) TransitionWorkflow(c fiber.Ctx) error {
	var req TransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.workflowService.Transition(c.Context(), h.actor(c), c.Params("id"), req.Event)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) RollbackWorkflow(c fiber.Ctx) error {
	var req RollbackRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	actor := h.actor(c)
	if !actor.IsHuman() {
		return badRequest(c, "Rollback requires the "+identity.UserHeader+" header")
	}

	result, err := h.workflowService.Rollback(c.Context(), actor, c.Params("id"), req.Target)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetAllowedEvents(c fiber.Ctx) error {
	state := models.State(c.Params("state"))
	if !registry.IsValidState(state) {
		return handleServiceError(c, fmt.Errorf("%w: %q", services.ErrInvalidState, state))
	}

	return c.JSON(AllowedEventsResponse{
		State:    state,
		Events:   registry.AllowedEvents(state),
		Terminal: registry.IsTerminal(state),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Contentflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Contentflow API is healthy"
		httpStatus = http.StatusOK
	} else {
		h.logger.WarnContext(c.Context(), "Health check failed", "detail", repositoryCheck)
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Routes mounts the workflow API on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/states/:state/events", h.GetAllowedEvents)

	w := router.Group("/workflows", h.RequireActor)
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Get("/:id/state", h.GetWorkflowState)
	w.Get("/:id/progress", h.GetWorkflowProgress)
	w.Get("/:id/transitions", h.GetWorkflowTransitions)
	w.Post("/:id/transitions", h.TransitionWorkflow)
	w.Post("/:id/rollback", h.RollbackWorkflow)
}
