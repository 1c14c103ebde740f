package models

// Event is a pipeline event. Completion events advance a workflow by exactly
// one stage; EventHumanReset moves it back to an operator-chosen stage.
type Event string

const (
	EventICPCompleted         Event = "icp_completed"
	EventCompetitorsCompleted Event = "competitors_completed"
	EventSeedsCompleted       Event = "seeds_completed"
	EventLongtailsCompleted   Event = "longtails_completed"
	EventFilteringCompleted   Event = "filtering_completed"
	EventClusteringCompleted  Event = "clustering_completed"
	EventValidationCompleted  Event = "validation_completed"
	EventSubtopicsCompleted   Event = "subtopics_completed"
	EventArticlesCompleted    Event = "articles_completed"

	// EventHumanReset is the rollback event. Its target is carried by
	// TransitionOptions.RollbackTarget rather than fixed by the registry.
	EventHumanReset Event = "human_reset"
)

var knownEvents = map[Event]struct{}{
	EventICPCompleted:         {},
	EventCompetitorsCompleted: {},
	EventSeedsCompleted:       {},
	EventLongtailsCompleted:   {},
	EventFilteringCompleted:   {},
	EventClusteringCompleted:  {},
	EventValidationCompleted:  {},
	EventSubtopicsCompleted:   {},
	EventArticlesCompleted:    {},
	EventHumanReset:           {},
}

func (e Event) String() string {
	return string(e)
}

// IsKnown reports whether e belongs to the closed event set.
func (e Event) IsKnown() bool {
	_, ok := knownEvents[e]

	return ok
}

// IsRollback reports whether e is the human reset event.
func (e Event) IsRollback() bool {
	return e == EventHumanReset
}
