package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/return2faye/binlogkit/pkg/binlog/writer"
)

func TestGetDefaultConfig_PassesValidation(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Writer.Dir = t.TempDir()
	require.NoError(t, Validate(cfg))
}

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "arrival", cfg.Writer.Discipline)
	assert.NotZero(t, cfg.Writer.BufferCapacity)
	assert.NotZero(t, cfg.Receipt.HeartbeatInterval)
}

func TestValidate_RejectsMissingWriterDir(t *testing.T) {
	cfg := GetDefaultConfig()
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Writer.Dir = t.TempDir()
	cfg.Logging.Level = "VERBOSE"
	assert.Error(t, Validate(cfg))
}

func TestSaveConfig_RoundTripsThroughLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Writer.Dir = filepath.Join(dir, "binlog")
	cfg.Writer.Discipline = "version"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Writer.Dir, loaded.Writer.Dir)
	assert.Equal(t, "version", loaded.Writer.Discipline)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestWriterConfig_ToWriterConfig_MapsDiscipline(t *testing.T) {
	wc := WriterConfig{Dir: "/tmp/x", Discipline: "version", RingSize: 8}
	got := wc.ToWriterConfig()
	assert.Equal(t, writer.Version, got.Discipline)
	assert.Equal(t, 8, got.RingSize)
}
