package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Options{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Debug("table decoded", "table", "AREACODES", "rows", 3)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "table decoded", rec["msg"])
	assert.Equal(t, "AREACODES", rec["table"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Options{Level: "warn", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(&Options{Level: "verbose"})
	assert.Error(t, err)
	_, err = New(&Options{Format: "xml"})
	assert.Error(t, err)
}

func TestOrDiscard(t *testing.T) {
	logger := OrDiscard(nil)
	require.NotNil(t, logger)
	logger.Error("dropped")
}
