package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/telemetry-bridge/internal/bridge"
	"github.com/roman-kulish/telemetry-bridge/internal/storage"
	"github.com/roman-kulish/telemetry-bridge/internal/transport"
)

const (
	SourceReader  SourceType = "reader"
	SourceCommand SourceType = "command"
	SourceSerial  SourceType = "serial"
)

// ErrConfigMissing is returned with the default configuration when the
// configuration file is not given, cannot be read or cannot be parsed.
var ErrConfigMissing = errors.New("configuration missing")

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Err.Error())
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type SourceType string

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings" json:"settings"`
	Topics   TopicsConfig   `yaml:"topics" json:"topics"`
	Sources  []SourceConfig `yaml:"sources" json:"sources"`
	Sinks    SinksConfig    `yaml:"sinks" json:"sinks"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel             slog.Level    `yaml:"logLevel" json:"logLevel"`
	StatusInterval       time.Duration `yaml:"statusInterval" json:"statusInterval"` // 0 disables the status line
	ParseErrorsThreshold uint8         `yaml:"parseErrorsThreshold" json:"parseErrorsThreshold"`
	QueueDepth           int           `yaml:"queueDepth" json:"queueDepth"` // per-subscriber bus queue
}

// TopicsConfig maps logical channel names to topic names. Missing entries
// use the defaults.
type TopicsConfig struct {
	Input  map[string]string `yaml:"input" json:"input,omitempty"`
	Output map[string]string `yaml:"output" json:"output,omitempty"`
}

// SourceConfig represents a single input source
type SourceConfig struct {
	Name    string     `yaml:"name" json:"name"`
	Type    SourceType `yaml:"type" json:"type"`
	Enabled bool       `yaml:"enabled" json:"enabled"`

	Path    string   `yaml:"path" json:"path,omitempty"` // reader: file, empty or "-" for stdin
	Command string   `yaml:"command" json:"command,omitempty"`
	Args    []string `yaml:"args" json:"args,omitempty"`
	Port    string   `yaml:"port" json:"port,omitempty"`

	transport.PortOptions `yaml:",inline" json:"serial,omitempty"`
}

// SinksConfig represents output sinks
type SinksConfig struct {
	Stream StreamConfig `yaml:"stream" json:"stream"`
}

// StreamConfig represents the stream sink settings
type StreamConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path,omitempty"` // empty or "-" for stdout
	Format  string `yaml:"format" json:"format"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	DataDirectory string        `yaml:"dataDirectory" json:"dataDirectory"`
	MaxBatchSize  int           `yaml:"maxBatchSize" json:"maxBatchSize"`
	FlushInterval time.Duration `yaml:"flushInterval" json:"flushInterval"`
}

// DefaultConfig reads envelopes from stdin and writes JSON envelopes to
// stdout. Storage is off.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel:             slog.LevelInfo,
			StatusInterval:       10 * time.Second,
			ParseErrorsThreshold: transport.ParseErrorsThreshold,
			QueueDepth:           transport.QueueDepth,
		},
		Sources: []SourceConfig{
			{Name: "stdin", Type: SourceReader, Enabled: true},
		},
		Sinks: SinksConfig{
			Stream: StreamConfig{Enabled: true, Format: string(transport.FormatJSON)},
		},
		Storage: StorageConfig{
			DataDirectory: storageDir,
			MaxBatchSize:  storage.DefaultMaxBatchSize,
			FlushInterval: storage.DefaultFlushInterval,
		},
	}
}

// LoadConfig reads the configuration file at path. When the file is not
// given, cannot be read or cannot be parsed it returns the default
// configuration together with an error wrapping ErrConfigMissing. An invalid
// configuration is returned as a *ConfigError and no configuration.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), fmt.Errorf("%w: no configuration file provided", ErrConfigMissing)
	}

	p, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("%w: reading '%s': %w", ErrConfigMissing, path, err)
	}

	config := DefaultConfig()
	if err = yaml.Unmarshal(p, config); err != nil {
		return DefaultConfig(), fmt.Errorf("%w: parsing '%s': %w", ErrConfigMissing, path, err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for values the bridge cannot run with.
func (c *Config) Validate() error {
	if c.Settings.StatusInterval < 0 {
		return &ConfigError{Field: "settings.statusInterval", Err: errors.New("must not be negative")}
	}
	if c.Settings.QueueDepth < 0 {
		return &ConfigError{Field: "settings.queueDepth", Err: errors.New("must not be negative")}
	}

	if _, err := bridge.NewTopics(c.Topics.Input, c.Topics.Output); err != nil {
		return &ConfigError{Field: "topics", Err: err}
	}

	names := make(map[string]struct{})
	for i, src := range c.Sources {
		if !src.Enabled {
			continue
		}

		field := fmt.Sprintf("sources[%d]", i)
		if src.Name == "" {
			return &ConfigError{Field: field + ".name", Err: errors.New("must not be empty")}
		}
		if _, ok := names[src.Name]; ok {
			return &ConfigError{Field: field + ".name", Err: fmt.Errorf("duplicate source '%s'", src.Name)}
		}
		names[src.Name] = struct{}{}

		switch src.Type {
		case SourceReader:
		case SourceCommand:
			if src.Command == "" {
				return &ConfigError{Field: field + ".command", Err: errors.New("must not be empty")}
			}
		case SourceSerial:
			if src.Port == "" {
				return &ConfigError{Field: field + ".port", Err: errors.New("must not be empty")}
			}
			if _, err := src.PortOptions.SerialMode(); err != nil {
				return &ConfigError{Field: field, Err: err}
			}
		default:
			return &ConfigError{Field: field + ".type", Err: fmt.Errorf("unknown source type '%s'", src.Type)}
		}
	}
	if len(names) == 0 {
		return &ConfigError{Field: "sources", Err: errors.New("no enabled sources")}
	}

	if _, err := transport.ParseFormat(c.Sinks.Stream.Format); err != nil {
		return &ConfigError{Field: "sinks.stream.format", Err: err}
	}

	if c.Storage.MaxBatchSize < 0 {
		return &ConfigError{Field: "storage.maxBatchSize", Err: errors.New("must not be negative")}
	}
	if c.Storage.FlushInterval < 0 {
		return &ConfigError{Field: "storage.flushInterval", Err: errors.New("must not be negative")}
	}

	return nil
}
