package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukex/contentflow/pkg/identity"
	"github.com/dukex/contentflow/pkg/metrics"
	"github.com/dukex/contentflow/pkg/persistence/file"
	"github.com/dukex/contentflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	persistence := file.NewPersistence(t.TempDir())
	registry := prometheus.NewRegistry()
	engine := workflow.NewEngine(logger, persistence.WorkflowRepository(), nil, workflow.WithMetrics(metrics.New(registry)))

	return NewAPI(logger, persistence, engine, registry).App()
}

func get(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t)

	status, body := get(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Contentflow API", body)
}

func TestAPI_Probes(t *testing.T) {
	app := setupTestApp(t)

	status, _ := get(t, app, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, status)

	status, _ = get(t, app, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_Metrics(t *testing.T) {
	app := setupTestApp(t)

	create := httptest.NewRequest(http.MethodPost, "/workflows", strings.NewReader(`{"name":"acme blog"}`))
	create.Header.Set("Content-Type", "application/json")
	create.Header.Set(identity.OrganizationHeader, "org-1")

	status, body := get(t, app, create)
	require.Equal(t, http.StatusCreated, status, body)

	id := body[strings.Index(body, `"id":"`)+6:]
	id = id[:strings.Index(id, `"`)]

	transition := httptest.NewRequest(http.MethodPost, "/workflows/"+id+"/transitions", strings.NewReader(`{"event":"icp_completed"}`))
	transition.Header.Set("Content-Type", "application/json")
	transition.Header.Set(identity.OrganizationHeader, "org-1")

	status, _ = get(t, app, transition)
	require.Equal(t, http.StatusOK, status)

	status, body = get(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `contentflow_transitions_total{event="icp_completed",outcome="applied"} 1`)
}

type slowHealthPersistence struct {
	*file.Persistence

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *slowHealthPersistence) HealthCheck(context.Context) error {
	p.once.Do(func() { close(p.entered) })
	<-p.release

	return nil
}

func freePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	return port
}

func TestAPI_StartWaitsForInFlightRequests(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &slowHealthPersistence{
		Persistence: file.NewPersistence(t.TempDir()),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	engine := workflow.NewEngine(logger, store.WorkflowRepository(), nil)
	port := freePort(t)
	addr := "127.0.0.1:" + strconv.Itoa(port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan error, 1)

	go func() {
		stopped <- NewAPI(logger, store, engine, nil).Start(ctx, port)
	}()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}

		_ = conn.Close()

		return true
	}, 2*time.Second, 10*time.Millisecond)

	responses := make(chan int, 1)

	go func() {
		resp, err := http.Get("http://" + addr + "/readyz")
		if err != nil {
			responses <- 0

			return
		}

		_ = resp.Body.Close()
		responses <- resp.StatusCode
	}()

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("readyz request never reached persistence")
	}

	cancel()

	select {
	case <-stopped:
		t.Fatal("Start returned while a request was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(store.release)

	assert.Equal(t, http.StatusOK, <-responses)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after shutdown")
	}
}
