package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"matchbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup points the global zerolog logger at the console and, when a file is
// configured, at a rotating log file. The returned closer flushes the file.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	return setup(cfg, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func setup(cfg config.LoggingConfig, console io.Writer) (io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, file)
		closer = file
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
