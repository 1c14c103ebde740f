// Package registry holds the static state table of the content pipeline and
// the pure validation functions built on it.
package registry

import (
	"slices"

	"github.com/dukex/contentflow/pkg/models"
)

type edge struct {
	event models.Event
	next  models.State
}

// stages is the canonical ordered sequence of non-terminal states.
var stages = []models.State{
	models.StateICP,
	models.StateCompetitors,
	models.StateSeeds,
	models.StateLongtails,
	models.StateFiltering,
	models.StateClustering,
	models.StateValidation,
	models.StateSubtopics,
	models.StateArticles,
}

const terminal = models.StateCompleted

// transitions maps each stage to its single completion edge. The terminal
// state has no entry.
var transitions = map[models.State][]edge{
	models.StateICP:         {{models.EventICPCompleted, models.StateCompetitors}},
	models.StateCompetitors: {{models.EventCompetitorsCompleted, models.StateSeeds}},
	models.StateSeeds:       {{models.EventSeedsCompleted, models.StateLongtails}},
	models.StateLongtails:   {{models.EventLongtailsCompleted, models.StateFiltering}},
	models.StateFiltering:   {{models.EventFilteringCompleted, models.StateClustering}},
	models.StateClustering:  {{models.EventClusteringCompleted, models.StateValidation}},
	models.StateValidation:  {{models.EventValidationCompleted, models.StateSubtopics}},
	models.StateSubtopics:   {{models.EventSubtopicsCompleted, models.StateArticles}},
	models.StateArticles:    {{models.EventArticlesCompleted, models.StateCompleted}},
}

// rollbackTargets is the allow-list of stages an operator may rewind to.
var rollbackTargets = []models.State{
	models.StateICP,
	models.StateCompetitors,
	models.StateSeeds,
	models.StateLongtails,
	models.StateFiltering,
	models.StateClustering,
	models.StateValidation,
}

// Stages returns the ordered non-terminal states.
func Stages() []models.State {
	return slices.Clone(stages)
}

// Terminal returns the single terminal state.
func Terminal() models.State {
	return terminal
}

// Initial returns the state new workflows are created in.
func Initial() models.State {
	return stages[0]
}

// States returns every valid state, stages first and the terminal state last.
func States() []models.State {
	return append(Stages(), terminal)
}

// IsTerminal reports whether state is the terminal state.
func IsTerminal(state models.State) bool {
	return state == terminal
}

// IsValidState reports whether candidate belongs to the closed state set.
func IsValidState(candidate models.State) bool {
	return candidate == terminal || slices.Contains(stages, candidate)
}

// StageIndex returns the position of state in the pipeline. The terminal
// state sorts after every stage; unknown states return -1.
func StageIndex(state models.State) int {
	if state == terminal {
		return len(stages)
	}

	return slices.Index(stages, state)
}

// AllowedEvents returns every event with a defined transition from state.
// The result is empty for the terminal state and for unknown states.
func AllowedEvents(state models.State) []models.Event {
	edges := transitions[state]

	events := make([]models.Event, 0, len(edges))
	for _, e := range edges {
		events = append(events, e.event)
	}

	return events
}

// CanTransition reports whether the table defines (state, event).
func CanTransition(state models.State, event models.Event) bool {
	_, ok := NextState(state, event)

	return ok
}

// NextState looks up the state reached by applying event in state. The
// boolean is false when no transition is defined, which is a legal
// "no transition" answer.
func NextState(state models.State, event models.Event) (models.State, bool) {
	for _, e := range transitions[state] {
		if e.event == event {
			return e.next, true
		}
	}

	return "", false
}

// RollbackTargets returns the stages an operator may rewind a workflow to.
func RollbackTargets() []models.State {
	return slices.Clone(rollbackTargets)
}

// IsRollbackTarget reports whether state is on the rollback allow-list.
func IsRollbackTarget(state models.State) bool {
	return slices.Contains(rollbackTargets, state)
}
