package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_BothModesBuild(t *testing.T) {
	t.Parallel()

	for _, development := range []bool{true, false} {
		logger, err := New(development)
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("logger ready", zap.Bool("development", development))
		logger.Sync() //nolint:errcheck // best-effort flush
	}
}

func TestForStage_NamesAndTagsEntries(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	log := ForStage(zap.New(core), "fetch")
	log.Info("run started", zap.Int("targets", 3))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "fetch", entries[0].LoggerName)
	require.Equal(t, "fetch", entries[0].ContextMap()["stage"])
	require.Equal(t, int64(3), entries[0].ContextMap()["targets"])
}
