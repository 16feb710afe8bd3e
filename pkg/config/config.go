// Package config loads binlogkit's configuration from a YAML file, with
// BINLOGKIT_*-prefixed environment variables overriding keys the file sets
// and built-in defaults filling whatever is left zero. CLI flags are not
// read by this package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/return2faye/binlogkit/internal/bytesize"
	"github.com/return2faye/binlogkit/pkg/binlog/group"
	"github.com/return2faye/binlogkit/pkg/binlog/writer"
	"github.com/return2faye/binlogkit/pkg/metrics"
	"github.com/return2faye/binlogkit/pkg/receipt/channel"
)

// Config is binlogkit's top-level configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics configures the Prometheus metrics HTTP endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Writer configures the binlog writer engine.
	Writer WriterConfig `mapstructure:"writer" yaml:"writer"`

	// Group configures the writer's dedicated flusher goroutine.
	Group GroupConfig `mapstructure:"group" yaml:"group"`

	// Receipt configures the idempotency-receipt client channel.
	Receipt ReceiptConfig `mapstructure:"receipt" yaml:"receipt"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// WriterConfig configures one binlog writer subdirectory.
type WriterConfig struct {
	// Dir is the on-disk subdirectory the writer owns.
	Dir string `mapstructure:"dir" validate:"required" yaml:"dir"`

	// BufferCapacity is the in-memory write buffer size. Accepts
	// human-readable sizes like "64KiB", "1MB".
	BufferCapacity bytesize.ByteSize `mapstructure:"buffer_capacity" validate:"required" yaml:"buffer_capacity"`

	// MaxSegmentSize overrides writer.DefaultMaxSegmentSize when non-zero.
	MaxSegmentSize bytesize.ByteSize `mapstructure:"max_segment_size" yaml:"max_segment_size,omitempty"`

	// Discipline selects "arrival" or "version" ordering.
	Discipline string `mapstructure:"discipline" validate:"required,oneof=arrival version" yaml:"discipline"`

	// RingSize overrides writer.DefaultRingSize for version-ordered writers.
	RingSize int `mapstructure:"ring_size" validate:"omitempty,gt=0" yaml:"ring_size,omitempty"`

	// NextVersion seeds a version-ordered writer's expected version.
	NextVersion uint64 `mapstructure:"next_version" yaml:"next_version,omitempty"`
}

// GroupConfig configures a writer group's producer queue.
type GroupConfig struct {
	QueueSize int `mapstructure:"queue_size" validate:"omitempty,gt=0" yaml:"queue_size,omitempty"`
}

// ReceiptConfig configures a receipt channel.
type ReceiptConfig struct {
	QueueCapacity int `mapstructure:"queue_capacity" validate:"omitempty,gt=0" yaml:"queue_capacity,omitempty"`
	MaxFrameBody  int `mapstructure:"max_frame_body" validate:"omitempty,gt=0" yaml:"max_frame_body,omitempty"`

	// HeartbeatInterval is how long a channel may sit idle before
	// pkg/receipt/lru issues it a PING_REQ.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"omitempty,gt=0" yaml:"heartbeat_interval,omitempty"`
}

// ToWriterConfig translates the loaded WriterConfig into writer.Config.
func (c WriterConfig) ToWriterConfig() writer.Config {
	discipline := writer.Arrival
	if strings.EqualFold(c.Discipline, "version") {
		discipline = writer.Version
	}
	return writer.Config{
		Dir:            c.Dir,
		BufferCapacity: int(c.BufferCapacity.Uint64()),
		MaxSegmentSize: int64(c.MaxSegmentSize.Uint64()),
		Discipline:     discipline,
		NextVersion:    c.NextVersion,
		RingSize:       c.RingSize,
	}
}

// ToGroupConfig translates GroupConfig into group.Config.
func (c GroupConfig) ToGroupConfig() group.Config {
	return group.Config{QueueSize: c.QueueSize}
}

// ToGroupConfigWithMetrics is ToGroupConfig, additionally wiring m into the
// returned group.Config so the group's worker reports ring-repush events.
func (c GroupConfig) ToGroupConfigWithMetrics(m *metrics.Binlog) group.Config {
	cfg := c.ToGroupConfig()
	cfg.Metrics = m
	return cfg
}

// ToWriterConfigWithMetrics is ToWriterConfig, additionally wiring m into
// the returned writer.Config so rotations, flushes, and write errors are
// observed.
func (c WriterConfig) ToWriterConfigWithMetrics(m *metrics.Binlog) writer.Config {
	cfg := c.ToWriterConfig()
	cfg.Metrics = m
	return cfg
}

// ToChannelConfig translates ReceiptConfig into channel.Config.
func (c ReceiptConfig) ToChannelConfig() channel.Config {
	return channel.Config{QueueCapacity: c.QueueCapacity, MaxFrameBody: c.MaxFrameBody}
}

// ToChannelConfigWithMetrics is ToChannelConfig, additionally wiring m into
// the returned channel.Config so batch size, round-trip latency, and
// reconnects are observed.
func (c ReceiptConfig) ToChannelConfigWithMetrics(m *metrics.Receipt) channel.Config {
	cfg := c.ToChannelConfig()
	cfg.Metrics = m
	return cfg
}

// Load loads configuration from file, environment, and defaults.
//
// Precedence (highest to lowest): environment variables (BINLOGKIT_*),
// configuration file, default values. Load builds its own viper instance,
// so no CLI flags are bound. Environment variables apply only to keys the
// file sets; when no config file is found, Load returns the built-in
// defaults without consulting the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration, returning a user-friendly error when no
// config file exists at the given (or default) path.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"initialize one first:\n  binlogctl init\n\n"+
				"or specify a custom config file:\n  binlogctl <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"create it with:\n  binlogctl init --config %s", configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML, using owner-only permissions.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BINLOGKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		dir := getConfigDir()
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "binlogkit")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "binlogkit")
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string { return getConfigDir() }

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
