package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Market  MarketConfig  `yaml:"market"`
	Journal JournalConfig `yaml:"journal"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

type ServerConfig struct {
	Address     string        `yaml:"address"`
	Port        int           `yaml:"port"`
	Workers     uint          `yaml:"workers"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // Empty logs to the console only.
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type MarketConfig struct {
	Symbol   string          `yaml:"symbol"`
	TickSize decimal.Decimal `yaml:"tick_size"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Default returns a configuration that runs a console-only server with no
// trade sinks besides the connected clients.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:     "0.0.0.0",
			Port:        9001,
			Workers:     10,
			ConnTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Market: MarketConfig{
			Symbol:   "AAPL",
			TickSize: decimal.RequireFromString("0.01"),
		},
		Journal: JournalConfig{
			Dir: "trades",
		},
		Kafka: KafkaConfig{
			Topic: "trades",
		},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// falls back to the CONFIG_FILE environment variable. ${VAR} references in
// the file are expanded before parsing.
func Load(path string) (*Config, error) {
	if len(path) == 0 {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg := Default()
	if len(path) == 0 {
		log.Debug().Msg("no config file, using defaults")
		return cfg, cfg.Validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	raw = []byte(os.ExpandEnv(string(raw)))

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.Workers == 0 {
		return fmt.Errorf("%w: at least one worker is required", ErrInvalidConfig)
	}
	if c.Server.ConnTimeout <= 0 {
		return fmt.Errorf("%w: conn_timeout must be positive", ErrInvalidConfig)
	}
	if !c.Market.TickSize.IsPositive() {
		return fmt.Errorf("%w: tick_size must be positive", ErrInvalidConfig)
	}
	if c.Market.Symbol == "" {
		return fmt.Errorf("%w: market symbol is required", ErrInvalidConfig)
	}
	if c.Journal.Enabled && c.Journal.Dir == "" {
		return fmt.Errorf("%w: journal dir is required", ErrInvalidConfig)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("%w: kafka needs brokers and a topic", ErrInvalidConfig)
	}
	return nil
}

// ListenAddress is the host:port the gateway binds.
func (c ServerConfig) ListenAddress() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}
