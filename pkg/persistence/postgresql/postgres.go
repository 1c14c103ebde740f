// Package postgresql provides PostgreSQL persistence for workflows and their transition history.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // postgres driver
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	workflowRepo   *WorkflowRepository
	transitionRepo *TransitionRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	return open(ctx, logger, database)
}

// open verifies the connection and migrates the schema. database is closed
// when either step fails.
func open(ctx context.Context, logger *slog.Logger, database *sql.DB) (*Persistence, error) {
	err := database.PingContext(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to ping database: %w", err), database.Close())
	}

	err = sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to run migrations: %w", err), database.Close())
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		workflowRepo:   NewWorkflowRepository(database, logger),
		transitionRepo: NewTransitionRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// WorkflowRepository returns the workflow repository.
func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

// TransitionRepository returns the audit repository.
func (p *Persistence) TransitionRepository() persistence.TransitionRepository {
	return p.transitionRepo
}
