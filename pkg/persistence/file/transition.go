package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/dukex/contentflow/pkg/models"
	"github.com/google/uuid"
)

// TransitionRepository appends transition records to one JSON-lines file per workflow.
type TransitionRepository struct {
	root string
	mu   sync.Mutex
}

// NewTransitionRepository creates a new transition repository.
func NewTransitionRepository(root string) *TransitionRepository {
	return &TransitionRepository{root: root}
}

// Append adds a record to the workflow's history.
func (tr *TransitionRepository) Append(_ context.Context, record *models.TransitionRecord) error {
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

	if !validID(record.WorkflowID) {
		return fmt.Errorf("invalid workflow ID %q", record.WorkflowID)
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal transition %s: %w", record.ID, err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	err = os.MkdirAll(path.Join(tr.root, "transitions"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create transitions directory: %w", err)
	}

	f, err := os.OpenFile(tr.historyPath(record.WorkflowID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open transition history of workflow %s: %w", record.WorkflowID, err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()

		return fmt.Errorf("failed to append transition %s: %w", record.ID, err)
	}

	return f.Close()
}

// ListByWorkflow returns a workflow's history in append order.
func (tr *TransitionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.TransitionRecord, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	records := make([]*models.TransitionRecord, 0)

	if !validID(workflowID) {
		return records, nil
	}

	f, err := os.Open(tr.historyPath(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}

		return nil, fmt.Errorf("failed to open transition history of workflow %s: %w", workflowID, err)
	}

	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record models.TransitionRecord

		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transition of workflow %s: %w", workflowID, err)
		}

		records = append(records, &record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transition history of workflow %s: %w", workflowID, err)
	}

	return records, nil
}

func (tr *TransitionRepository) historyPath(workflowID string) string {
	return filepath.Clean(path.Join(tr.root, "transitions", workflowID+".jsonl"))
}
