package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "local", cfg.Output.Sink)
	assert.Equal(t, ".", cfg.Output.Directory)
	assert.Equal(t, "us-east-1", cfg.Output.S3.Region)
	assert.Equal(t, 30, cfg.OSDR.Timeout)
	assert.True(t, cfg.OSDR.Cache.Enabled)
	assert.Equal(t, 86400, cfg.OSDR.Cache.TTL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "Latest", cfg.Conversion.ConfigVersion)
	assert.True(t, cfg.Conversion.AssertFactorValues)
	assert.False(t, cfg.IsS3Sink())
}

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err, "Load should return defaults for non-existent file")
	assert.Equal(t, "local", cfg.Output.Sink)
}

func TestLoadValidFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
log_level: debug
output:
  sink: s3
  s3:
    bucket: runsheets-bucket
    prefix: dp/
osdr:
  timeout: 5
  cache:
    enabled: false
conversion:
  assert_factor_values: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0600))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.IsS3Sink())
	assert.Equal(t, "runsheets-bucket", cfg.Output.S3.Bucket)
	assert.Equal(t, "dp/", cfg.Output.S3.Prefix)
	assert.Equal(t, "us-east-1", cfg.Output.S3.Region, "unset keys keep defaults")
	assert.Equal(t, 5, cfg.OSDR.Timeout)
	assert.False(t, cfg.OSDR.Cache.Enabled)
	assert.False(t, cfg.Conversion.AssertFactorValues)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: yaml: [broken"), 0600))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadRejectsS3WithoutBucket(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("output:\n  sink: s3\n"), 0600))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestLoadRejectsUnknownSink(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("output:\n  sink: ftp\n"), 0600))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RUNSHEET_OUTPUT_SINK", "s3")
	t.Setenv("RUNSHEET_S3_BUCKET", "env-bucket")
	t.Setenv("RUNSHEET_S3_PATH_STYLE", "TRUE")
	t.Setenv("RUNSHEET_SERVER_PORT", "9090")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.True(t, cfg.IsS3Sink())
	assert.Equal(t, "env-bucket", cfg.Output.S3.Bucket)
	assert.True(t, cfg.Output.S3.PathStyle)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = 9999
	cfg.Output.Directory = "/data/runsheets"

	require.NoError(t, cfg.Save(configPath))

	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Server.Port)
	assert.Equal(t, "/data/runsheets", loaded.Output.Directory)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", expandPath(""))
	assert.Equal(t, "/abs/path", expandPath("/abs/path"))
	assert.Equal(t, filepath.Join(home, "out"), expandPath("~/out"))
}

func TestGetConfigPathEnv(t *testing.T) {
	t.Setenv("RUNSHEET_CONFIG", "/etc/runsheet.yaml")
	assert.Equal(t, "/etc/runsheet.yaml", GetConfigPath())
}
