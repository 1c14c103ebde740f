package registry_test

import (
	"testing"

	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStages_SealedModel(t *testing.T) {
	t.Parallel()

	stages := registry.Stages()

	require.Len(t, stages, 9)
	assert.NotContains(t, stages, registry.Terminal())
	assert.Len(t, registry.States(), 10)
	assert.Equal(t, models.StateICP, registry.Initial())
	assert.Equal(t, models.StateCompleted, registry.Terminal())

	for _, s := range registry.States() {
		assert.NotContains(t, string(s), "_running")
		assert.NotContains(t, string(s), "_failed")
	}
}

func TestStages_ReturnsCopy(t *testing.T) {
	t.Parallel()

	stages := registry.Stages()
	stages[0] = models.StateCompleted

	assert.Equal(t, models.StateICP, registry.Stages()[0])
}

func TestTransitions_LinearProgression(t *testing.T) {
	t.Parallel()

	states := registry.States()

	for i, state := range registry.Stages() {
		events := registry.AllowedEvents(state)
		require.Len(t, events, 1, "stage %s should have exactly one completion event", state)

		next, ok := registry.NextState(state, events[0])
		require.True(t, ok)
		assert.Equal(t, states[i+1], next)
		assert.Equal(t, i, registry.StageIndex(state))
	}
}

func TestTerminal_HasNoOutgoingTransitions(t *testing.T) {
	t.Parallel()

	assert.Empty(t, registry.AllowedEvents(models.StateCompleted))
	assert.True(t, registry.IsTerminal(models.StateCompleted))
	assert.Equal(t, len(registry.Stages()), registry.StageIndex(models.StateCompleted))

	for _, event := range []models.Event{
		models.EventArticlesCompleted,
		models.EventICPCompleted,
		models.EventHumanReset,
	} {
		assert.False(t, registry.CanTransition(models.StateCompleted, event))
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state models.State
		event models.Event
		want  bool
		next  models.State
	}{
		{"icp completes", models.StateICP, models.EventICPCompleted, true, models.StateCompetitors},
		{"articles complete the workflow", models.StateArticles, models.EventArticlesCompleted, true, models.StateCompleted},
		{"event from a later stage", models.StateICP, models.EventSeedsCompleted, false, ""},
		{"event from an earlier stage", models.StateCompetitors, models.EventICPCompleted, false, ""},
		{"rollback is not in the table", models.StateArticles, models.EventHumanReset, false, ""},
		{"unknown state", models.State("step_0_auth"), models.EventICPCompleted, false, ""},
		{"unknown event", models.StateICP, models.Event("icp_started"), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, registry.CanTransition(tt.state, tt.event))

			next, ok := registry.NextState(tt.state, tt.event)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.next, next)
		})
	}
}

func TestIsValidState(t *testing.T) {
	t.Parallel()

	for _, s := range registry.States() {
		assert.True(t, registry.IsValidState(s), s)
	}

	assert.False(t, registry.IsValidState(""))
	assert.False(t, registry.IsValidState("failed"))
	assert.False(t, registry.IsValidState("step_1_icp_running"))
	assert.Equal(t, -1, registry.StageIndex("failed"))
}

func TestRollbackTargets(t *testing.T) {
	t.Parallel()

	targets := registry.RollbackTargets()

	assert.NotContains(t, targets, registry.Terminal())
	assert.True(t, registry.IsRollbackTarget(models.StateSeeds))
	assert.False(t, registry.IsRollbackTarget(models.StateArticles))
	assert.False(t, registry.IsRollbackTarget(models.StateCompleted))

	for _, target := range targets {
		assert.Contains(t, registry.Stages(), target)
	}
}
