// Package models defines the core domain models for the content production pipeline.
package models

import "time"

// State is a workflow pipeline state. The set of states is closed; see the
// registry package for the canonical ordering and transition table.
type State string

const (
	StateICP         State = "step_1_icp"         // Ideal customer profile generation
	StateCompetitors State = "step_2_competitors" // Competitor analysis
	StateSeeds       State = "step_3_seeds"       // Seed keyword extraction
	StateLongtails   State = "step_4_longtails"   // Long-tail keyword expansion
	StateFiltering   State = "step_5_filtering"   // Keyword filtering
	StateClustering  State = "step_6_clustering"  // Topic clustering
	StateValidation  State = "step_7_validation"  // Cluster validation
	StateSubtopics   State = "step_8_subtopics"   // Subtopic generation
	StateArticles    State = "step_9_articles"    // Article generation
	StateCompleted   State = "completed"          // Terminal
)

func (s State) String() string {
	return string(s)
}

// Workflow is a single run of the content production pipeline owned by an organization.
type Workflow struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	State          State          `json:"state"`
	OrganizationID string         `json:"organization_id"`
	CreatedBy      string         `json:"created_by"`
	Payload        map[string]any `json:"payload,omitempty"` // Stage output, owned by the stage workers
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
