package logutil

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Configure("info", "text") })

	Configure("warn", "json")
	Infof("dropped")
	Warnf("kept %d", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry), buf.String())
	assert.Equal(t, "kept 1", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.NotContains(t, buf.String(), "dropped")
}

func TestVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Configure("info", "text") })
	Configure("info", "text")

	Debugf("hidden")
	assert.False(t, Verbose())
	assert.Empty(t, buf.String())

	SetVerbose(true)
	assert.True(t, Verbose())
	With("container_id", "c-1").Debug("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "container_id=c-1")

	SetVerbose(false)
	assert.False(t, Verbose())
}
