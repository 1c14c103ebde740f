package web

import (
	"errors"

	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func writeProblem(c fiber.Ctx, status int, kind string, detail string) error {
	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(status).JSON(problem)
}

func badRequest(c fiber.Ctx, detail string) error {
	return writeProblem(c, fiber.StatusBadRequest, "validation_error", detail)
}

// handleServiceError maps service and engine errors to problem responses.
// Rejected transitions are not errors and never reach this function.
func handleServiceError(c fiber.Ctx, err error) error {
	var serviceErr *services.ServiceError

	switch {
	case errors.As(err, &serviceErr) && serviceErr.Code != "":
		return writeProblem(c, fiber.StatusBadRequest, serviceErr.Code, serviceErr.Error())
	case services.IsValidationError(err):
		return writeProblem(c, fiber.StatusBadRequest, "validation_error", err.Error())
	case persistence.IsWorkflowNotFound(err):
		return writeProblem(c, fiber.StatusNotFound, "workflow_not_found", "workflow not found")
	case persistence.IsWorkflowAlreadyExists(err):
		return writeProblem(c, fiber.StatusConflict, "workflow_exists", "workflow already exists")
	default:
		problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
