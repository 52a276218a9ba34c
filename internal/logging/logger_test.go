package logging

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	logger, err := New(&Config{
		LogDir:     t.TempDir(),
		Level:      LevelDebug,
		MaxHistory: 5,
		Console:    false,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func TestLoggerWritesToFile(t *testing.T) {
	logger := newTestLogger(t)

	component := logger.Component("controller")
	component.Info().Msg("State changed")

	data, err := os.ReadFile(logger.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "State changed")
	assert.Contains(t, string(data), `"component":"controller"`)
	assert.Contains(t, string(data), `"app":"voiceinterview"`)
}

func TestHistoryBounded(t *testing.T) {
	logger := newTestLogger(t)

	for i := 0; i < 10; i++ {
		logger.Record(LevelInfo, "test", strings.Repeat("x", i+1))
	}

	history := logger.History(0)
	require.Len(t, history, 5, "history must stay bounded at MaxHistory")
	assert.Equal(t, strings.Repeat("x", 10), history[4].Message)

	recent := logger.History(2)
	require.Len(t, recent, 2)
	assert.Equal(t, strings.Repeat("x", 9), recent[0].Message)
}

func TestOnLogCallback(t *testing.T) {
	logger := newTestLogger(t)

	got := make(chan Entry, 1)
	logger.SetOnLog(func(e Entry) { got <- e })

	logger.Record(LevelWarn, "monitor", "End of turn detected")

	select {
	case entry := <-got:
		assert.Equal(t, "warn", entry.Level)
		assert.Equal(t, "monitor", entry.Component)
		assert.Equal(t, "End of turn detected", entry.Message)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}
