package config

import (
	"strings"
	"time"

	"github.com/return2faye/binlogkit/internal/bytesize"
	"github.com/return2faye/binlogkit/pkg/binlog/group"
	"github.com/return2faye/binlogkit/pkg/receipt/channel"
	"github.com/return2faye/binlogkit/pkg/receipt/lru"
)

// GetDefaultConfig returns a Config with every field at its default value.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields with sensible defaults; a
// zero value is a missing value, not an invalid one.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyWriterDefaults(&cfg.Writer)
	applyGroupDefaults(&cfg.Group)
	applyReceiptDefaults(&cfg.Receipt)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyWriterDefaults(cfg *WriterConfig) {
	if cfg.BufferCapacity == 0 {
		cfg.BufferCapacity = 64 * bytesize.KiB
	}
	if cfg.Discipline == "" {
		cfg.Discipline = "arrival"
	}
	cfg.Discipline = strings.ToLower(cfg.Discipline)
}

func applyGroupDefaults(cfg *GroupConfig) {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = group.DefaultQueueSize
	}
}

func applyReceiptDefaults(cfg *ReceiptConfig) {
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = 256
	}
	if cfg.MaxFrameBody == 0 {
		cfg.MaxFrameBody = channel.DefaultMaxFrameBody
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
}

// DefaultHeartbeatInterval is how long a channel may sit idle before it
// is pinged.
const DefaultHeartbeatInterval = 30 * time.Second

// assertPinger is a compile-time check that channel.Channel still
// satisfies lru.Pinger, since ReceiptConfig.HeartbeatInterval is only
// meaningful when wired through a lru.ThreadCtx[*channel.Channel].
var _ lru.Pinger = (*channel.Channel)(nil)
