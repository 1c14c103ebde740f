// Package file provides file-based persistence for workflows and their transition history.
// It serializes state changes within a single process and is meant for local
// development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/contentflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	workflowRepo   *WorkflowRepository
	transitionRepo *TransitionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		workflowRepo:   NewWorkflowRepository(cleanRoot),
		transitionRepo: NewTransitionRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// WorkflowRepository returns the workflow repository implementation for file persistence.
func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

// TransitionRepository returns the audit repository implementation for file persistence.
func (fp *Persistence) TransitionRepository() persistence.TransitionRepository {
	return fp.transitionRepo
}
