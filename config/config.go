package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/they4kman/sweeprelay/game"
	"gopkg.in/yaml.v2"
)

type Config struct {
	// Address the broker listens on
	Addr string `yaml:"addr"`
	// Connection paths distinguishing the driving side from observers
	DriverPath   string `yaml:"driver_path"`
	ObserverPath string `yaml:"observer_path"`
	// Interval between heartbeat pings sent to each client
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// Base URL of the broker, used by drive and observe
	BrokerURL string `yaml:"broker_url"`
	// Fixed delay between reconnection attempts
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Board used by start_new_game when no dimensions are given
	Rows  int `yaml:"rows"`
	Cols  int `yaml:"cols"`
	Mines int `yaml:"mines"`

	// Seed for mine placement; zero seeds from the clock
	Seed       int64  `yaml:"seed"`
	FlagPolicy string `yaml:"flag_policy"`

	// Path to directory where final snapshots of boards should be saved
	SnapshotsDir string `yaml:"snapshots_dir"`

	LogLevel string `yaml:"log_level"`
}

func NewConfig() Config {
	return Config{
		Addr:              ":8080",
		DriverPath:        "/mcp",
		ObserverPath:      "/ui",
		HeartbeatInterval: 30 * time.Second,
		BrokerURL:         "ws://localhost:8080",
		RetryDelay:        5 * time.Second,
		Rows:              game.DefaultRows,
		Cols:              game.DefaultCols,
		Mines:             game.DefaultMines,
		FlagPolicy:        game.FlagsLockedAfterEnd.String(),
		LogLevel:          logrus.InfoLevel.String(),
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	config := NewConfig()

	contents, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.UnmarshalStrict(contents, &config); err != nil {
		return config, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return config, config.Validate()
}

func (config Config) Validate() error {
	if err := game.Validate(config.Rows, config.Cols, config.Mines); err != nil {
		return fmt.Errorf("default board: %w", err)
	}
	if _, err := config.Policy(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(config.LogLevel); err != nil {
		return err
	}
	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if config.RetryDelay <= 0 {
		return fmt.Errorf("retry_delay must be positive")
	}
	if !strings.HasPrefix(config.DriverPath, "/") || !strings.HasPrefix(config.ObserverPath, "/") {
		return fmt.Errorf("driver_path and observer_path must start with /")
	}
	if config.DriverPath == config.ObserverPath {
		return fmt.Errorf("driver_path and observer_path must differ")
	}
	if _, err := url.Parse(config.BrokerURL); err != nil {
		return fmt.Errorf("broker_url: %w", err)
	}
	return nil
}

func (config Config) Policy() (game.FlagPolicy, error) {
	return game.ParseFlagPolicy(config.FlagPolicy)
}

func (config Config) DriverURL() string {
	return strings.TrimRight(config.BrokerURL, "/") + config.DriverPath
}

func (config Config) ObserverURL() string {
	return strings.TrimRight(config.BrokerURL, "/") + config.ObserverPath
}

// Logger returns a logrus logger at the configured level
func (config Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(config.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
