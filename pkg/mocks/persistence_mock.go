// Package mocks provides testify mocks of the storage and messaging interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetState(ctx context.Context, id string) (models.State, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(models.State), args.Error(1)
}

func (m *MockWorkflowRepository) CompareAndSwapState(ctx context.Context, id string, expected, next models.State) (models.State, bool, error) {
	args := m.Called(ctx, id, expected, next)

	return args.Get(0).(models.State), args.Bool(1), args.Error(2)
}

func (m *MockWorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.WorkflowListResult), args.Error(1)
}

func (m *MockWorkflowRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*models.Workflow, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) CountStale(ctx context.Context, before time.Time) (int, error) {
	args := m.Called(ctx, before)

	return args.Int(0), args.Error(1)
}

// MockTransitionRepository is a mock implementation of persistence.TransitionRepository interface.
type MockTransitionRepository struct {
	mock.Mock
}

func (m *MockTransitionRepository) Append(ctx context.Context, record *models.TransitionRecord) error {
	args := m.Called(ctx, record)

	return args.Error(0)
}

func (m *MockTransitionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.TransitionRecord, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TransitionRecord), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Workflows   *MockWorkflowRepository
	Transitions *MockTransitionRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Workflows:   &MockWorkflowRepository{},
		Transitions: &MockTransitionRepository{},
	}
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.Workflows
}

func (m *MockPersistence) TransitionRepository() persistence.TransitionRepository {
	return m.Transitions
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
