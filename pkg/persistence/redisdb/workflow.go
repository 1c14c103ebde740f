package redisdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/registry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultListLimit = 20

// KEYS: workflow, organization index, active index.
// ARGV: id, created score, updated score, terminal state, then hash field/value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local fields = {}
for i = 5, #ARGV do
	fields[#fields + 1] = ARGV[i]
end
redis.call('HSET', KEYS[1], unpack(fields))
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
if redis.call('HGET', KEYS[1], 'state') ~= ARGV[4] then
	redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
end
return 1
`)

// KEYS: workflow, active index.
// ARGV: expected, next, updated_at, updated score, id, terminal state.
var compareAndSwapScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'state', ARGV[2], 'updated_at', ARGV[3])
if ARGV[2] == ARGV[6] then
	redis.call('ZREM', KEYS[2], ARGV[5])
else
	redis.call('ZADD', KEYS[2], ARGV[4], ARGV[5])
end
return 1
`)

// WorkflowRepository stores workflows as Redis hashes.
type WorkflowRepository struct {
	client redis.UniversalClient
	logger *slog.Logger
	keys   keyspace
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(client redis.UniversalClient, logger *slog.Logger, keys keyspace) *WorkflowRepository {
	return &WorkflowRepository{client: client, logger: logger, keys: keys}
}

// Create stores a new workflow.
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

	payloadJSON, err := json.Marshal(workflow.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	created, err := createScript.Run(ctx, r.client,
		[]string{r.keys.workflow(workflow.ID), r.keys.organization(workflow.OrganizationID), r.keys.active()},
		workflow.ID,
		workflow.CreatedAt.UnixMicro(),
		workflow.UpdatedAt.UnixMilli(),
		string(registry.Terminal()),
		"id", workflow.ID,
		"name", workflow.Name,
		"state", string(workflow.State),
		"organization_id", workflow.OrganizationID,
		"created_by", workflow.CreatedBy,
		"payload", string(payloadJSON),
		"created_at", workflow.CreatedAt.Format(time.RFC3339Nano),
		"updated_at", workflow.UpdatedAt.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	if created == 0 {
		return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrWorkflowAlreadyExists)
	}

	return nil
}

// GetByID returns a workflow by its ID.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	fields, err := r.client.HGetAll(ctx, r.keys.workflow(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	if len(fields) == 0 {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return decodeWorkflow(fields)
}

// GetState reads only the state field of a workflow.
func (r *WorkflowRepository) GetState(ctx context.Context, id string) (models.State, error) {
	state, err := r.client.HGet(ctx, r.keys.workflow(id), "state").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", persistence.NewWorkflowError("GetState", id, persistence.ErrWorkflowNotFound)
		}

		return "", fmt.Errorf("failed to fetch workflow state %s: %w", id, err)
	}

	return models.State(state), nil
}

// CompareAndSwapState conditionally updates the workflow state.
func (r *WorkflowRepository) CompareAndSwapState(ctx context.Context, id string, expected, next models.State) (models.State, bool, error) {
	now := time.Now().UTC()

	swapped, err := compareAndSwapScript.Run(ctx, r.client,
		[]string{r.keys.workflow(id), r.keys.active()},
		string(expected),
		string(next),
		now.Format(time.RFC3339Nano),
		now.UnixMilli(),
		id,
		string(registry.Terminal()),
	).Int()
	if err != nil {
		return "", false, fmt.Errorf("failed to update workflow state: %w", err)
	}

	if swapped == 0 {
		return "", false, nil
	}

	return next, true, nil
}

// List returns the workflows of an organization, newest first.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}

	ids, err := r.client.ZRevRange(ctx, r.keys.organization(opts.OrganizationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	all, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(all))

	for _, workflow := range all {
		if opts.State != nil && workflow.State != *opts.State {
			continue
		}

		filtered = append(filtered, workflow)
	}

	total := len(filtered)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)

	return &persistence.WorkflowListResult{
		Workflows:   filtered[start:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

// ListStale returns non-terminal workflows whose last update is older than before.
func (r *WorkflowRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*models.Workflow, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	ids, err := r.client.ZRangeByScore(ctx, r.keys.active(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(before.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list stale workflows: %w", err)
	}

	return r.load(ctx, ids)
}

// CountStale counts non-terminal workflows whose last update is older than before.
func (r *WorkflowRepository) CountStale(ctx context.Context, before time.Time) (int, error) {
	count, err := r.client.ZCount(ctx, r.keys.active(), "-inf", "("+strconv.FormatInt(before.UnixMilli(), 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count stale workflows: %w", err)
	}

	return int(count), nil
}

func (r *WorkflowRepository) load(ctx context.Context, ids []string) ([]*models.Workflow, error) {
	if len(ids) == 0 {
		return []*models.Workflow{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.keys.workflow(id))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			r.logger.WarnContext(ctx, "indexed workflow is missing", "workflow_id", ids[i])

			continue
		}

		workflow, err := decodeWorkflow(fields)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func decodeWorkflow(fields map[string]string) (*models.Workflow, error) {
	workflow := &models.Workflow{
		ID:             fields["id"],
		Name:           fields["name"],
		State:          models.State(fields["state"]),
		OrganizationID: fields["organization_id"],
		CreatedBy:      fields["created_by"],
	}

	if payload := fields["payload"]; payload != "" && payload != "null" {
		if err := json.Unmarshal([]byte(payload), &workflow.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload of workflow %s: %w", workflow.ID, err)
		}
	}

	var err error

	workflow.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at of workflow %s: %w", workflow.ID, err)
	}

	workflow.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at of workflow %s: %w", workflow.ID, err)
	}

	return workflow, nil
}
