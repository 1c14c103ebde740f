package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukex/contentflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"workflow_id":"wf-1","event":"seeds_completed"}`), 0600))

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"workflow_id":"wf-1","event":"human_reset"}`), 0600))

	var out bytes.Buffer

	require.NoError(t, validateFiles([]string{valid}, nil, &out))
	assert.Contains(t, out.String(), "valid.json: ok")

	out.Reset()

	err := validateFiles([]string{valid, invalid}, nil, &out)
	require.ErrorContains(t, err, "1 of 2")
	assert.Contains(t, out.String(), "invalid.json")

	out.Reset()

	err = validateFiles(nil, strings.NewReader(`{"event":"seeds_completed"}`), &out)
	require.ErrorIs(t, err, events.ErrInvalidStageCompletion)
}
