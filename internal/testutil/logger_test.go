package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCaptureLogger(t *testing.T) {
	logger, buf := NewCaptureLogger()

	logger.Debug("operation cached", "position", 2)
	logger.Info("run completed", "tables", 1)

	out := buf.String()
	assert.Contains(t, out, `msg="operation cached" position=2`)
	assert.Contains(t, out, `msg="run completed" tables=1`)
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}
