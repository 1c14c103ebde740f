package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidStageCompletion indicates a stage completion message that does not match its schema.
var ErrInvalidStageCompletion = errors.New("invalid stage completion message")

const stageCompletedSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["workflow_id", "event"],
	"properties": {
		"id": {"type": "string"},
		"type": {"const": "stage.completed"},
		"workflow_id": {"type": "string", "minLength": 1},
		"event": {
			"type": "string",
			"enum": [
				"icp_completed",
				"competitors_completed",
				"seeds_completed",
				"longtails_completed",
				"filtering_completed",
				"clustering_completed",
				"validation_completed",
				"subtopics_completed",
				"articles_completed"
			]
		},
		"worker_id": {"type": "string"},
		"completed_at": {"type": "string", "format": "date-time"}
	}
}`

var stageCompletedLoader = gojsonschema.NewStringLoader(stageCompletedSchema)

// ValidateStageCompleted checks a raw stage completion payload. human_reset is
// not accepted here; resets come from operators, never from stage workers.
func ValidateStageCompleted(payload []byte) error {
	result, err := gojsonschema.Validate(stageCompletedLoader, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStageCompletion, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			messages = append(messages, e.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidStageCompletion, strings.Join(messages, "; "))
	}

	return nil
}
