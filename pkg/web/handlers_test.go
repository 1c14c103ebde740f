package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/contentflow/pkg/audit"
	"github.com/dukex/contentflow/pkg/identity"
	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/persistence/file"
	"github.com/dukex/contentflow/pkg/progress"
	"github.com/dukex/contentflow/pkg/services"
	"github.com/dukex/contentflow/pkg/web"
	"github.com/dukex/contentflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	persistence := file.NewPersistence(t.TempDir())
	engine := workflow.NewEngine(logger, persistence.WorkflowRepository(),
		audit.NewStoreRecorder(persistence.TransitionRepository(), logger, nil))

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(persistence, engine),
		web.NewValidator(),
		identity.HeaderResolver{},
		logger,
	)

	app := fiber.New()
	handlers.Routes(app)

	return app
}

type request struct {
	method string
	path   string
	body   any
	org    string
	user   string
}

func do(t *testing.T, app *fiber.App, r request) (int, []byte) {
	t.Helper()

	var body io.Reader

	if r.body != nil {
		raw, err := json.Marshal(r.body)
		require.NoError(t, err)

		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(r.method, r.path, body)
	req.Header.Set("Content-Type", "application/json")

	if r.org != "" {
		req.Header.Set(identity.OrganizationHeader, r.org)
	}

	if r.user != "" {
		req.Header.Set(identity.UserHeader, r.user)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, out
}

func createWorkflow(t *testing.T, app *fiber.App) models.Workflow {
	t.Helper()

	status, body := do(t, app, request{
		method: http.MethodPost,
		path:   "/workflows",
		body:   web.CreateWorkflowRequest{Name: "acme blog", Payload: map[string]any{"domain": "acme.test"}},
		org:    "org-1",
		user:   "user-1",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var wf models.Workflow
	require.NoError(t, json.Unmarshal(body, &wf))

	return wf
}

func transition(t *testing.T, app *fiber.App, id string, event models.Event) (int, models.TransitionResult) {
	t.Helper()

	status, body := do(t, app, request{
		method: http.MethodPost,
		path:   "/workflows/" + id + "/transitions",
		body:   web.TransitionRequest{Event: event},
		org:    "org-1",
	})

	var result models.TransitionResult
	if status == http.StatusOK {
		require.NoError(t, json.Unmarshal(body, &result))
	}

	return status, result
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	wf := createWorkflow(t, app)
	assert.NotEmpty(t, wf.ID)
	assert.Equal(t, models.StateICP, wf.State)
	assert.Equal(t, "org-1", wf.OrganizationID)
	assert.Equal(t, "user-1", wf.CreatedBy)

	tests := []struct {
		name   string
		req    request
		status int
	}{
		{
			name:   "missing organization header",
			req:    request{method: http.MethodPost, path: "/workflows", body: web.CreateWorkflowRequest{Name: "acme blog"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "name too short",
			req:    request{method: http.MethodPost, path: "/workflows", body: web.CreateWorkflowRequest{Name: "ab"}, org: "org-1"},
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid json",
			req:    request{method: http.MethodPost, path: "/workflows", body: "not an object", org: "org-1"},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, app, tt.req)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestAPIHandlers_GetWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createWorkflow(t, app)

	status, body := do(t, app, request{method: http.MethodGet, path: "/workflows/" + wf.ID, org: "org-1"})
	require.Equal(t, http.StatusOK, status)

	var got models.Workflow
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, wf.ID, got.ID)
	assert.Equal(t, "acme.test", got.Payload["domain"])

	status, _ = do(t, app, request{method: http.MethodGet, path: "/workflows/" + wf.ID, org: "org-2"})
	assert.Equal(t, http.StatusNotFound, status, "other organizations do not see the workflow")

	status, _ = do(t, app, request{method: http.MethodGet, path: "/workflows/does-not-exist", org: "org-1"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, app, request{method: http.MethodGet, path: "/workflows/" + wf.ID + "/state", org: "org-1"})
	require.Equal(t, http.StatusOK, status)

	var state web.StateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, models.StateICP, state.State)
}

func TestAPIHandlers_GetWorkflows(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	createWorkflow(t, app)
	createWorkflow(t, app)

	status, body := do(t, app, request{method: http.MethodGet, path: "/workflows?limit=1", org: "org-1"})
	require.Equal(t, http.StatusOK, status)

	var page struct {
		Workflows   []models.Workflow `json:"workflows"`
		TotalCount  int64             `json:"total_count"`
		HasNextPage bool              `json:"has_next_page"`
	}
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page.Workflows, 1)
	assert.Equal(t, int64(2), page.TotalCount)
	assert.True(t, page.HasNextPage)

	status, _ = do(t, app, request{method: http.MethodGet, path: "/workflows?limit=abc", org: "org-1"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, request{method: http.MethodGet, path: "/workflows?state=failed", org: "org-1"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_TransitionWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createWorkflow(t, app)

	status, result := transition(t, app, wf.ID, models.EventICPCompleted)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.TransitionResult{
		OK:            true,
		Applied:       true,
		PreviousState: models.StateICP,
		NextState:     models.StateCompetitors,
		Outcome:       models.OutcomeApplied,
	}, result)

	status, result = transition(t, app, wf.ID, models.EventICPCompleted)
	require.Equal(t, http.StatusOK, status, "a rejected transition is not an HTTP error")
	assert.False(t, result.OK)
	assert.Equal(t, models.StateCompetitors, result.NextState)

	status, _ = transition(t, app, wf.ID, "icp_started")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = transition(t, app, wf.ID, models.EventHumanReset)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = transition(t, app, "missing", models.EventICPCompleted)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_RollbackWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createWorkflow(t, app)

	for _, event := range []models.Event{models.EventICPCompleted, models.EventCompetitorsCompleted} {
		status, result := transition(t, app, wf.ID, event)
		require.Equal(t, http.StatusOK, status)
		require.True(t, result.Applied)
	}

	rollback := func(target models.State, user string) (int, []byte) {
		return do(t, app, request{
			method: http.MethodPost,
			path:   "/workflows/" + wf.ID + "/rollback",
			body:   web.RollbackRequest{Target: target},
			org:    "org-1",
			user:   user,
		})
	}

	status, _ := rollback(models.StateICP, "")
	assert.Equal(t, http.StatusBadRequest, status, "rollback needs a human actor")

	status, _ = rollback(models.StateArticles, "user-1")
	assert.Equal(t, http.StatusBadRequest, status, "target is not on the allow-list")

	status, _ = rollback(models.StateValidation, "user-1")
	require.Equal(t, http.StatusOK, status, "target ahead of the workflow is a rejected result")

	status, body := rollback(models.StateICP, "user-1")
	require.Equal(t, http.StatusOK, status)

	var result models.TransitionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Applied)
	assert.Equal(t, models.StateICP, result.NextState)

	status, body = do(t, app, request{method: http.MethodGet, path: "/workflows/" + wf.ID + "/transitions", org: "org-1"})
	require.Equal(t, http.StatusOK, status)

	var history struct {
		Transitions []models.TransitionRecord `json:"transitions"`
		TotalCount  int                       `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &history))
	require.Equal(t, 3, history.TotalCount)
	assert.Equal(t, models.EventHumanReset, history.Transitions[2].Event)
	require.NotNil(t, history.Transitions[2].TriggeredBy)
	assert.Equal(t, "user-1", *history.Transitions[2].TriggeredBy)
}

func TestAPIHandlers_GetWorkflowProgress(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	wf := createWorkflow(t, app)

	status, body := do(t, app, request{method: http.MethodGet, path: "/workflows/" + wf.ID + "/progress", org: "org-1"})
	require.Equal(t, http.StatusOK, status)

	var view progress.View
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, 10, view.Percentage)
	assert.Equal(t, models.StateICP, view.State)
	assert.False(t, view.Complete)
	assert.Equal(t, []models.Event{models.EventICPCompleted}, view.AllowedEvents)
}

func TestAPIHandlers_GetAllowedEvents(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, request{method: http.MethodGet, path: "/states/step_3_seeds/events"})
	require.Equal(t, http.StatusOK, status)

	var resp web.AllowedEventsResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, []models.Event{models.EventSeedsCompleted}, resp.Events)
	assert.False(t, resp.Terminal)

	status, body = do(t, app, request{method: http.MethodGet, path: "/states/completed/events"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Empty(t, resp.Events)
	assert.True(t, resp.Terminal)

	status, _ = do(t, app, request{method: http.MethodGet, path: "/states/failed/events"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, request{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "healthy")
}
