package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitializeStreams(t *testing.T) {
	t.Cleanup(func() { _ = Initialize(DefaultConfig()) })

	require.NoError(t, Initialize(Config{Level: "debug", Format: "json", Output: "stdout"}))
	assert.True(t, Logger.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Initialize(Config{Level: "bogus"}))
	assert.False(t, Logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, Logger.Core().Enabled(zapcore.InfoLevel))
}

func TestInitializeRejectsFileOutput(t *testing.T) {
	t.Cleanup(func() { _ = Initialize(DefaultConfig()) })
	require.NoError(t, Initialize(DefaultConfig()))
	before := Logger

	err := Initialize(Config{Level: "info", Output: "/var/log/fibre-cost.log"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdout or stderr")
	assert.Same(t, before, Logger)
}
