package progress_test

import (
	"testing"

	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/progress"
	"github.com/dukex/contentflow/pkg/registry"
	"github.com/stretchr/testify/assert"
)

func TestPercentage_MonotonicAndBounded(t *testing.T) {
	t.Parallel()

	last := -1

	for _, state := range registry.States() {
		p := progress.Percentage(state)

		assert.GreaterOrEqual(t, p, 0)
		assert.LessOrEqual(t, p, 100)
		assert.Greater(t, p, last, "percentage should grow along the pipeline at %s", state)

		last = p
	}

	assert.Equal(t, 100, progress.Percentage(models.StateCompleted))
}

func TestDescription_TotalOverStates(t *testing.T) {
	t.Parallel()

	for _, state := range registry.States() {
		assert.NotEmpty(t, progress.Description(state))
		assert.NotEqual(t, "Unknown state", progress.Description(state))
	}

	assert.Equal(t, "Unknown state", progress.Description("failed"))
	assert.Equal(t, 0, progress.Percentage("failed"))
}

func TestIsComplete_OnlyTerminal(t *testing.T) {
	t.Parallel()

	for _, state := range registry.Stages() {
		assert.False(t, progress.IsComplete(state))
	}

	assert.True(t, progress.IsComplete(models.StateCompleted))
}

func TestNewView(t *testing.T) {
	t.Parallel()

	view := progress.NewView("wf-1", models.StateClustering)

	assert.Equal(t, "wf-1", view.WorkflowID)
	assert.Equal(t, 60, view.Percentage)
	assert.Equal(t, "Clustering keywords into topics", view.Description)
	assert.False(t, view.Complete)
	assert.Equal(t, []models.Event{models.EventClusteringCompleted}, view.AllowedEvents)

	done := progress.NewView("wf-1", models.StateCompleted)
	assert.True(t, done.Complete)
	assert.Empty(t, done.AllowedEvents)
}
