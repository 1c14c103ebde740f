package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/registry"
	"github.com/google/uuid"
)

const defaultListLimit = 20

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string // File system root for storing workflows

	// mu makes read-compare-write of a workflow file atomic for this process.
	mu sync.Mutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// Create stores a new workflow.
func (wr *WorkflowRepository) Create(_ context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	if !validID(workflow.ID) {
		return fmt.Errorf("invalid workflow ID %q", workflow.ID)
	}

	if !registry.IsValidState(workflow.State) {
		return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrInvalidState)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	wr.mu.Lock()
	defer wr.mu.Unlock()

	if _, err := os.Stat(wr.workflowPath(workflow.ID)); err == nil {
		return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrWorkflowAlreadyExists)
	}

	return wr.write(workflow)
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	return wr.read(workflowID)
}

// GetState returns the current state of a workflow.
func (wr *WorkflowRepository) GetState(_ context.Context, workflowID string) (models.State, error) {
	workflow, err := wr.read(workflowID)
	if err != nil {
		return "", err
	}

	return workflow.State, nil
}

// CompareAndSwapState replaces the workflow state when it still equals expected.
func (wr *WorkflowRepository) CompareAndSwapState(_ context.Context, workflowID string, expected, next models.State) (models.State, bool, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.read(workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return "", false, nil
		}

		return "", false, err
	}

	if workflow.State != expected {
		return "", false, nil
	}

	workflow.State = next
	workflow.UpdatedAt = time.Now().UTC()

	if err := wr.write(workflow); err != nil {
		return "", false, err
	}

	return workflow.State, true, nil
}

// List returns paginated workflows of an organization, newest first.
func (wr *WorkflowRepository) List(_ context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}

	all, err := wr.readAll()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(all))

	for _, workflow := range all {
		if opts.OrganizationID != "" && workflow.OrganizationID != opts.OrganizationID {
			continue
		}

		if opts.State != nil && workflow.State != *opts.State {
			continue
		}

		filtered = append(filtered, workflow)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

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
func (wr *WorkflowRepository) ListStale(_ context.Context, before time.Time, limit int) ([]*models.Workflow, error) {
	all, err := wr.readAll()
	if err != nil {
		return nil, err
	}

	stale := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if registry.IsTerminal(workflow.State) || !workflow.UpdatedAt.Before(before) {
			continue
		}

		stale = append(stale, workflow)
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
	})

	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}

	return stale, nil
}

// CountStale counts non-terminal workflows whose last update is older than before.
func (wr *WorkflowRepository) CountStale(ctx context.Context, before time.Time) (int, error) {
	stale, err := wr.ListStale(ctx, before, 0)
	if err != nil {
		return 0, err
	}

	return len(stale), nil
}

// validID rejects ids that would escape the workflows directory.
func validID(workflowID string) bool {
	return workflowID != "" && workflowID != "." && workflowID != ".." && !strings.ContainsAny(workflowID, `/\`)
}

func (wr *WorkflowRepository) workflowPath(workflowID string) string {
	return filepath.Clean(path.Join(wr.root, "workflows", workflowID+".json"))
}

func (wr *WorkflowRepository) read(workflowID string) (*models.Workflow, error) {
	if !validID(workflowID) {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
	}

	body, err := os.ReadFile(wr.workflowPath(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", workflowID, err)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) readAll() ([]*models.Workflow, error) {
	root := os.DirFS(path.Join(wr.root, "workflows"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		workflow, err := wr.read(name[:len(name)-len(".json")])
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// write replaces the workflow file through a rename so readers never see a
// partially written document.
func (wr *WorkflowRepository) write(workflow *models.Workflow) error {
	dir := path.Join(wr.root, "workflows")

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	tmp, err := os.CreateTemp(dir, workflow.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for workflow %s: %w", workflow.ID, err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close workflow file %s: %w", workflow.ID, err)
	}

	return os.Rename(tmp.Name(), wr.workflowPath(workflow.ID))
}
