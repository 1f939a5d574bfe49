package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"matchbook/internal/config"
	"matchbook/internal/engine"
	"matchbook/internal/logging"
	"matchbook/internal/net"
	"matchbook/internal/tradelog"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config (defaults to $CONFIG_FILE)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logFile, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Setup the matching engine and where its trades go.
	eng := engine.New(cfg.Market.Symbol)
	dispatcher := tradelog.NewDispatcher()
	eng.SetRecorder(dispatcher)

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Error().Err(err).Msg("close failed")
			}
		}
	}()

	if cfg.Journal.Enabled {
		journal, err := tradelog.OpenJournal(cfg.Journal.Dir)
		if err != nil {
			return err
		}
		closers = append(closers, journal)
		dispatcher.AddSink(journal)
		log.Info().Str("dir", cfg.Journal.Dir).Uint64("trades", journal.Len()).Msg("trade journal open")
	}
	if cfg.Kafka.Enabled {
		publisher := tradelog.NewPublisher(cfg.Market.Symbol, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, publisher)
		dispatcher.AddSink(publisher)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("trade publisher ready")
	}

	// Setup the TCP gateway, which also reports trades back to clients.
	srv := net.New(cfg.Server, eng)
	dispatcher.AddSink(srv)

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		return dispatcher.Run(t)
	})
	t.Go(func() error {
		return srv.Run(ctx)
	})

	log.Info().
		Str("symbol", cfg.Market.Symbol).
		Str("tick_size", cfg.Market.TickSize.String()).
		Msg("matching engine started")

	// Block on running the server.
	err = t.Wait()
	stats := eng.Stats()
	log.Info().
		Uint64("trades", stats.Trades).
		Uint64("last_order_id", eng.LastOrderID()).
		Msg("matching engine stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
