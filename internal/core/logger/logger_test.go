package logger_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerSplitsLevelsIntoFiles(t *testing.T) {
	dir := t.TempDir()

	log, cleanup, err := logger.NewLogger(logger.Options{Dir: dir})
	require.NoError(t, err)

	log.Info("lock acquired", logger.StringField("transaction_id", "t_1"))
	log.Warn("lock busy", logger.StringField("transaction_id", "t_2"))
	cleanup()

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	errs, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(info), "lock acquired"))
	assert.False(t, strings.Contains(string(info), "lock busy"))
	assert.True(t, strings.Contains(string(errs), "lock busy"))
	assert.False(t, strings.Contains(string(errs), "lock acquired"))
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	dir := t.TempDir()

	log, cleanup, err := logger.NewLogger(logger.Options{Dir: dir, Level: "warn"})
	require.NoError(t, err)

	log.Info("dropped")
	cleanup()

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.Empty(t, info)
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, _, err := logger.NewLogger(logger.Options{Level: "loud"})
	assert.Error(t, err)
}
