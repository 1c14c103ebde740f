// Package progress projects workflow states onto display values.
package progress

import (
	"github.com/dukex/contentflow/pkg/models"
	"github.com/dukex/contentflow/pkg/registry"
)

type projection struct {
	percentage  int
	description string
}

var projections = map[models.State]projection{
	models.StateICP:         {10, "Generating ideal customer profile"},
	models.StateCompetitors: {20, "Analyzing competitors"},
	models.StateSeeds:       {30, "Extracting seed keywords"},
	models.StateLongtails:   {40, "Expanding long-tail keywords"},
	models.StateFiltering:   {50, "Filtering keywords"},
	models.StateClustering:  {60, "Clustering keywords into topics"},
	models.StateValidation:  {70, "Validating topic clusters"},
	models.StateSubtopics:   {80, "Generating subtopics"},
	models.StateArticles:    {90, "Generating articles"},
	models.StateCompleted:   {100, "Workflow completed"},
}

const unknownDescription = "Unknown state"

// Percentage returns the display progress of state in [0,100]. It is for
// presentation only; use IsComplete to decide completion.
func Percentage(state models.State) int {
	return projections[state].percentage
}

// Description returns a human-readable description of state.
func Description(state models.State) string {
	p, ok := projections[state]
	if !ok {
		return unknownDescription
	}

	return p.description
}

// IsComplete reports whether state is the terminal state.
func IsComplete(state models.State) bool {
	return registry.IsTerminal(state)
}

// View is the progress read model served to presentation layers.
type View struct {
	WorkflowID    string         `json:"workflow_id"`
	State         models.State   `json:"state"`
	Percentage    int            `json:"percentage"`
	Description   string         `json:"description"`
	Complete      bool           `json:"complete"`
	AllowedEvents []models.Event `json:"allowed_events"`
}

// NewView builds the progress view of a workflow in state.
func NewView(workflowID string, state models.State) View {
	return View{
		WorkflowID:    workflowID,
		State:         state,
		Percentage:    Percentage(state),
		Description:   Description(state),
		Complete:      IsComplete(state),
		AllowedEvents: registry.AllowedEvents(state),
	}
}
