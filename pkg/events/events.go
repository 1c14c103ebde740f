// Package events defines the messages exchanged with stage workers and downstream consumers.
package events

import (
	"time"

	"github.com/dukex/contentflow/pkg/models"
)

type EventType string

// Topics.
const (
	StageCompletionTopic     = "contentflow.stage.completions"    // Stage workers -> dispatcher
	WorkflowTransitionsTopic = "contentflow.workflow.transitions" // Engine -> downstream consumers
)

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	StageCompletedEvent       EventType = "stage.completed"
	WorkflowTransitionedEvent EventType = "workflow.transitioned"
)

// TopicFor returns the topic an event type travels on.
func TopicFor(eventType EventType) string {
	if eventType == StageCompletedEvent {
		return StageCompletionTopic
	}

	return WorkflowTransitionsTopic
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// StageCompleted is published by a stage worker when its stage's work is done.
type StageCompleted struct {
	BaseEvent

	Event       models.Event `json:"event"`
	WorkerID    string       `json:"worker_id,omitempty"`
	CompletedAt time.Time    `json:"completed_at"`
}

func (s StageCompleted) GetType() EventType {
	return StageCompletedEvent
}

// WorkflowTransitioned announces a committed state change.
type WorkflowTransitioned struct {
	BaseEvent

	PreviousState models.State `json:"previous_state"`
	Event         models.Event `json:"event"`
	NextState     models.State `json:"next_state"`
	TriggeredBy   *string      `json:"triggered_by,omitempty"`
}

func (w WorkflowTransitioned) GetType() EventType {
	return WorkflowTransitionedEvent
}
