package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCommand(t *testing.T) {
	out, _, err := execute(t, "list")
	require.NoError(t, err)

	for _, typeName := range []string{"CommandLine", "FileCopy", "FileDelete", "ScriptEval", "WebhookNotify"} {
		assert.Contains(t, out, typeName)
	}

	assert.Contains(t, out, "start_frame")
	assert.Contains(t, out, "required")
	assert.Contains(t, out, "First frame of the range")
}
