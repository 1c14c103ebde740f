package file_test

import (
	"context"
	"testing"

	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionRepository_AppendAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())
	repo := p.TransitionRepository()

	records, err := repo.ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	operator := "operator-7"

	require.NoError(t, repo.Append(ctx, &models.TransitionRecord{
		WorkflowID:    "wf-1",
		PreviousState: models.StateICP,
		Event:         models.EventICPCompleted,
		NextState:     models.StateCompetitors,
	}))
	require.NoError(t, repo.Append(ctx, &models.TransitionRecord{
		WorkflowID:    "wf-1",
		PreviousState: models.StateCompetitors,
		Event:         models.EventHumanReset,
		NextState:     models.StateICP,
		TriggeredBy:   &operator,
	}))
	require.NoError(t, repo.Append(ctx, &models.TransitionRecord{
		WorkflowID:    "wf-2",
		PreviousState: models.StateICP,
		Event:         models.EventICPCompleted,
		NextState:     models.StateCompetitors,
	}))

	records, err = repo.ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.NotEmpty(t, records[0].ID)
	assert.False(t, records[0].CreatedAt.IsZero())
	assert.Nil(t, records[0].TriggeredBy)
	assert.Equal(t, models.EventHumanReset, records[1].Event)
	require.NotNil(t, records[1].TriggeredBy)
	assert.Equal(t, operator, *records[1].TriggeredBy)

	require.NoError(t, p.HealthCheck(ctx))
	require.NoError(t, p.Close(ctx))
}
