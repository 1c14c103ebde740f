package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/contentflow/pkg/audit"
	"github.com/dukex/contentflow/pkg/identity"
	"github.com/dukex/contentflow/pkg/mocks"
	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/persistence/file"
	"github.com/dukex/contentflow/pkg/services"
	"github.com/dukex/contentflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	operator = identity.Actor{UserID: "user-1", OrganizationID: "org-1"}
	worker   = identity.Actor{OrganizationID: "org-1"}
	stranger = identity.Actor{UserID: "user-2", OrganizationID: "org-2"}
)

func newService(t *testing.T) *services.Workflow {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := file.NewPersistence(t.TempDir())
	engine := workflow.NewEngine(logger, p.WorkflowRepository(), audit.NewStoreRecorder(p.TransitionRepository(), logger, nil))

	return services.NewWorkflow(p, engine)
}

func TestWorkflow_Create(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()

	wf, err := svc.Create(ctx, operator, services.CreateWorkflowRequest{
		Name:    "  acme blog  ",
		Payload: map[string]any{"domain": "acme.test"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, wf.ID)
	assert.Equal(t, "acme blog", wf.Name)
	assert.Equal(t, models.StateICP, wf.State)
	assert.Equal(t, "org-1", wf.OrganizationID)
	assert.Equal(t, "user-1", wf.CreatedBy)

	_, err = svc.Create(ctx, operator, services.CreateWorkflowRequest{Name: " "})
	require.ErrorIs(t, err, services.ErrWorkflowNameRequired)
	assert.True(t, services.IsValidationError(err))

	_, err = svc.Create(ctx, identity.Actor{}, services.CreateWorkflowRequest{Name: "x"})
	assert.True(t, services.IsValidationError(err))
}

func TestWorkflow_OrganizationScope(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()

	wf, err := svc.Create(ctx, operator, services.CreateWorkflowRequest{Name: "acme blog"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, worker, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, got.ID)

	_, err = svc.Get(ctx, stranger, wf.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = svc.Transition(ctx, stranger, wf.ID, models.EventICPCompleted)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = svc.Rollback(ctx, stranger, wf.ID, models.StateICP)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = svc.History(ctx, stranger, wf.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = svc.Progress(ctx, stranger, wf.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	state, err := svc.State(ctx, operator, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateICP, state)
}

func TestWorkflow_TransitionAndRollback(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()

	wf, err := svc.Create(ctx, operator, services.CreateWorkflowRequest{Name: "acme blog"})
	require.NoError(t, err)

	for _, event := range []models.Event{
		models.EventICPCompleted,
		models.EventCompetitorsCompleted,
		models.EventSeedsCompleted,
	} {
		result, err := svc.Transition(ctx, worker, wf.ID, event)
		require.NoError(t, err)
		require.True(t, result.Applied, event)
	}

	result, err := svc.Transition(ctx, worker, wf.ID, models.EventICPCompleted)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, models.StateLongtails, result.NextState)

	_, err = svc.Transition(ctx, operator, wf.ID, models.EventHumanReset)
	require.ErrorIs(t, err, services.ErrRollbackNotAllowed)

	result, err = svc.Rollback(ctx, operator, wf.ID, models.StateCompetitors)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.StateCompetitors, result.NextState)

	_, err = svc.Rollback(ctx, operator, wf.ID, models.StateArticles)
	require.ErrorIs(t, err, workflow.ErrInvalidRollbackTarget)
	assert.True(t, services.IsValidationError(err))

	history, err := svc.History(ctx, operator, wf.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Nil(t, history[0].TriggeredBy, "stage workers are automated")
	require.NotNil(t, history[3].TriggeredBy)
	assert.Equal(t, "user-1", *history[3].TriggeredBy)
	assert.Equal(t, models.EventHumanReset, history[3].Event)

	view, err := svc.Progress(ctx, operator, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, view.Percentage)
	assert.False(t, view.Complete)
	assert.Equal(t, []models.Event{models.EventCompetitorsCompleted}, view.AllowedEvents)
}

func TestWorkflow_List(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		_, err := svc.Create(ctx, operator, services.CreateWorkflowRequest{Name: name})
		require.NoError(t, err)
	}

	_, err := svc.Create(ctx, stranger, services.CreateWorkflowRequest{Name: "other"})
	require.NoError(t, err)

	page, err := svc.List(ctx, operator, services.ListWorkflowsRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Workflows, 2)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.True(t, page.HasNextPage)

	completed := models.StateCompleted
	page, err = svc.List(ctx, operator, services.ListWorkflowsRequest{State: &completed})
	require.NoError(t, err)
	assert.Empty(t, page.Workflows)

	bogus := models.State("step_1_icp_running")
	_, err = svc.List(ctx, operator, services.ListWorkflowsRequest{State: &bogus})
	require.ErrorIs(t, err, services.ErrInvalidState)
	assert.True(t, services.IsValidationError(err))
}

func TestWorkflow_List_ClampsPaging(t *testing.T) {
	t.Parallel()

	p := mocks.NewMockPersistence()
	p.Workflows.On("List", mock.Anything, persistence.ListWorkflowsOptions{
		OrganizationID: "org-1",
		Limit:          100,
		Offset:         0,
	}).Return(&persistence.WorkflowListResult{}, nil)

	svc := services.NewWorkflow(p, nil)

	_, err := svc.List(context.Background(), operator, services.ListWorkflowsRequest{Limit: 500, Offset: -3})
	require.NoError(t, err)
	p.Workflows.AssertExpectations(t)
}

func TestWorkflow_HealthCheck(t *testing.T) {
	t.Parallel()

	p := mocks.NewMockPersistence()
	p.On("HealthCheck", mock.Anything).Return(errors.New("connection refused")).Once()
	p.On("HealthCheck", mock.Anything).Return(nil).Once()

	svc := services.NewWorkflow(p, nil)

	msg, ok := svc.HealthCheck(context.Background())
	assert.False(t, ok)
	assert.Contains(t, msg, "connection refused")

	_, ok = svc.HealthCheck(context.Background())
	assert.True(t, ok)
}
