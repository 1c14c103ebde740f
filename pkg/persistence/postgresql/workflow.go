package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/registry"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	defaultListLimit = 20

	uniqueViolation = "23505"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const selectWorkflow = `
		SELECT
			id
		  , name
		  , state
		  , organization_id
		  , created_by
		  , payload
		  , created_at
		  , updated_at
		FROM workflows
`

// Create inserts a new workflow.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	if !registry.IsValidState(workflow.State) {
		return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrInvalidState)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	payload := workflow.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO workflows (id, name, state, organization_id, created_by, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.State,
		workflow.OrganizationID,
		workflow.CreatedBy,
		payloadJSON,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrWorkflowAlreadyExists)
		}

		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

// GetByID returns a workflow by its ID.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	if !isUUID(id) {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	row := r.db.QueryRowContext(ctx, selectWorkflow+" WHERE id = $1", id)

	workflow, err := r.scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// GetState reads only the state column of a workflow.
func (r *WorkflowRepository) GetState(ctx context.Context, id string) (models.State, error) {
	if !isUUID(id) {
		return "", persistence.NewWorkflowError("GetState", id, persistence.ErrWorkflowNotFound)
	}

	var state models.State

	err := r.db.QueryRowContext(ctx, "SELECT state FROM workflows WHERE id = $1", id).Scan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", persistence.NewWorkflowError("GetState", id, persistence.ErrWorkflowNotFound)
		}

		return "", fmt.Errorf("failed to query workflow state: %w", err)
	}

	return state, nil
}

// CompareAndSwapState conditionally updates the workflow state. The row-level
// conditional UPDATE is the only serialization point between concurrent callers.
func (r *WorkflowRepository) CompareAndSwapState(ctx context.Context, id string, expected, next models.State) (models.State, bool, error) {
	if !isUUID(id) {
		return "", false, nil
	}

	query := `
		UPDATE workflows
		SET state = $3, updated_at = $4
		WHERE id = $1 AND state = $2
		RETURNING state
	`

	var state models.State

	err := r.db.QueryRowContext(ctx, query, id, expected, next, time.Now().UTC()).Scan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to update workflow state: %w", err)
	}

	return state, true, nil
}

// List returns the workflows of an organization, newest first.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}

	where := " WHERE organization_id = $1"
	args := []any{opts.OrganizationID}

	if opts.State != nil {
		where += " AND state = $2"

		args = append(args, *opts.State)
	}

	var total int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows"+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	query := fmt.Sprintf("%s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", selectWorkflow, where, len(args)+1, len(args)+2)

	workflows, err := r.queryWorkflows(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, err
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(workflows)) < total,
	}, nil
}

// ListStale returns non-terminal workflows whose last update is older than before.
func (r *WorkflowRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*models.Workflow, error) {
	query := selectWorkflow + `
		WHERE state <> $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`

	if limit <= 0 {
		limit = defaultListLimit
	}

	return r.queryWorkflows(ctx, query, registry.Terminal(), before, limit)
}

// CountStale counts non-terminal workflows whose last update is older than before.
func (r *WorkflowRepository) CountStale(ctx context.Context, before time.Time) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workflows WHERE state <> $1 AND updated_at < $2",
		registry.Terminal(), before,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale workflows: %w", err)
	}

	return count, nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func(ctx context.Context, r *WorkflowRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowRepository) scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		payloadJSON []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.State,
		&workflow.OrganizationID,
		&workflow.CreatedBy,
		&payloadJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(payloadJSON) > 0 {
		err = json.Unmarshal(payloadJSON, &workflow.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return &workflow, nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)

	return err == nil
}
