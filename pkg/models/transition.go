package models

import "time"

// TransitionOutcome classifies a TransitionResult for logs and metrics.
type TransitionOutcome string

const (
	OutcomeApplied      TransitionOutcome = "applied"       // State changed
	OutcomeNoop         TransitionOutcome = "noop"          // Already in the requested state
	OutcomeNotAllowed   TransitionOutcome = "not_allowed"   // Event not legal from the current state
	OutcomeConflict     TransitionOutcome = "conflict"      // Another actor changed the state first
	OutcomeNotPersisted TransitionOutcome = "not_persisted" // Conditional write had no effect, state unchanged
)

// TransitionResult is the outcome of a transition attempt.
//
// Applied implies OK, and an OK result whose states differ is always Applied.
// A result with OK false is a normal answer ("no change, this is the current
// state"), not a failure.
type TransitionResult struct {
	OK            bool              `json:"ok"`
	Applied       bool              `json:"applied"`
	PreviousState State             `json:"previous_state"`
	NextState     State             `json:"next_state"`
	Outcome       TransitionOutcome `json:"outcome"`
}

// TransitionOptions carries the optional inputs of a transition.
type TransitionOptions struct {
	// RollbackTarget is required for EventHumanReset and ignored otherwise.
	RollbackTarget *State
	// TriggeredBy identifies the human actor. Nil for automated triggers.
	TriggeredBy *string
}

// TransitionRecord is an immutable audit entry for a committed transition.
type TransitionRecord struct {
	ID            string    `json:"id"`
	WorkflowID    string    `json:"workflow_id"`
	PreviousState State     `json:"previous_state"`
	Event         Event     `json:"event"`
	NextState     State     `json:"next_state"`
	TriggeredBy   *string   `json:"triggered_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
