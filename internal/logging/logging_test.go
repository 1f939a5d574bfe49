package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"matchbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	logger, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = logger
		zerolog.SetGlobalLevel(level)
	})
}

func TestSetup_ConsoleAndFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "engine.log")

	var console bytes.Buffer
	closer, err := setup(config.LoggingConfig{Level: "debug", File: path, MaxSizeMB: 1}, &console)
	require.NoError(t, err)

	log.Debug().Uint64("order_id", 7).Msg("order placed")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), `"order_id":7`)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "order placed")
}

func TestSetup_Level(t *testing.T) {
	restoreLogger(t)

	var console bytes.Buffer
	_, err := setup(config.LoggingConfig{Level: "warn"}, &console)
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	log.Info().Msg("dropped")
	assert.Empty(t, console.String())

	_, err = setup(config.LoggingConfig{Level: "loud"}, &console)
	assert.Error(t, err)
}
