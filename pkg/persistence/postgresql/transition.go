package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/contentflow/pkg/models"
	"github.com/google/uuid"
)

// TransitionRepository handles the append-only workflow_transitions table.
type TransitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTransitionRepository creates a new transition repository.
func NewTransitionRepository(db *sql.DB, logger *slog.Logger) *TransitionRepository {
	return &TransitionRepository{db: db, logger: logger}
}

// Append inserts a transition record.
func (r *TransitionRepository) Append(ctx context.Context, record *models.TransitionRecord) error {
	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate transition ID: %w", err)
		}

		record.ID = id.String()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO workflow_transitions (id, workflow_id, previous_state, event, next_state, triggered_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.WorkflowID,
		record.PreviousState,
		record.Event,
		record.NextState,
		record.TriggeredBy,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	return nil
}

// ListByWorkflow returns the transition history of a workflow, oldest first.
func (r *TransitionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.TransitionRecord, error) {
	records := make([]*models.TransitionRecord, 0)

	if !isUUID(workflowID) {
		return records, nil
	}

	query := `
		SELECT id, workflow_id, previous_state, event, next_state, triggered_by, created_at
		FROM workflow_transitions
		WHERE workflow_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	for rows.Next() {
		var (
			record      models.TransitionRecord
			triggeredBy sql.NullString
		)

		err := rows.Scan(
			&record.ID,
			&record.WorkflowID,
			&record.PreviousState,
			&record.Event,
			&record.NextState,
			&triggeredBy,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}

		if triggeredBy.Valid {
			record.TriggeredBy = &triggeredBy.String
		}

		records = append(records, &record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return records, nil
}
