package redisdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/contentflow/pkg/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TransitionRepository appends transition records to a Redis list per workflow.
type TransitionRepository struct {
	client redis.UniversalClient
	keys   keyspace
}

// NewTransitionRepository creates a new transition repository.
func NewTransitionRepository(client redis.UniversalClient, keys keyspace) *TransitionRepository {
	return &TransitionRepository{client: client, keys: keys}
}

// Append pushes a record onto the workflow's history list.
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

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal transition %s: %w", record.ID, err)
	}

	if err := r.client.RPush(ctx, r.keys.transitions(record.WorkflowID), data).Err(); err != nil {
		return fmt.Errorf("failed to append transition %s: %w", record.ID, err)
	}

	return nil
}

// ListByWorkflow returns a workflow's history in append order.
func (r *TransitionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.TransitionRecord, error) {
	items, err := r.client.LRange(ctx, r.keys.transitions(workflowID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions of workflow %s: %w", workflowID, err)
	}

	records := make([]*models.TransitionRecord, 0, len(items))

	for _, item := range items {
		var record models.TransitionRecord

		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transition of workflow %s: %w", workflowID, err)
		}

		records = append(records, &record)
	}

	return records, nil
}
