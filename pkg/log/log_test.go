package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetupRejectsUnknownLevel tests that a config typo is an error, not
// a silent verbosity change
func TestSetupRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Setup("verbose", false, nil))
	assert.NoError(t, Setup("warn", false, nil))

	// Empty level falls back to info
	assert.NoError(t, Setup("", false, nil))
}

// TestSetupJSONOutput tests that JSON mode writes structured records
func TestSetupJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("info", true, &buf))
	defer Setup("info", false, nil)

	probeLogger := WithComponent("probe")
	probeLogger.Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"component":"probe"`)
	assert.Contains(t, out, `"message":"hello"`)
}

// TestLevelFiltering tests that records below the configured level are
// suppressed
func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("error", true, &buf))
	defer Setup("info", false, nil)

	logger := WithComponent("probe")
	logger.Info().Msg("dropped")
	logger.Error().Msg("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

// TestInstanceRegistry tests the register/drop lifecycle of verticle
// instance loggers
func TestInstanceRegistry(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("info", true, &buf))
	defer Setup("info", false, nil)

	before := ActiveInstances()

	logger := Instance("burrow.deployments.dep1-0", "dep1", 0)
	assert.Equal(t, before+1, ActiveInstances())

	logger.Info().Msg("instance up")
	assert.Contains(t, buf.String(), `"deployment":"dep1"`)
	assert.Contains(t, buf.String(), `"instance":0`)

	Drop("burrow.deployments.dep1-0")
	assert.Equal(t, before, ActiveInstances())

	// Dropping again is harmless
	Drop("burrow.deployments.dep1-0")
	assert.Equal(t, before, ActiveInstances())
}
