package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var required = []string{"--url", "http://collector.local", "--port", "8080", "--token", "s3cret"}

func TestFromFlagsDefaults(t *testing.T) {
	cfg, err := FromFlags(required, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "http://collector.local", cfg.ServerURL)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "s3cret", cfg.Token)
	assert.Equal(t, 1, cfg.Interval)
	assert.Equal(t, "/var/log/agent_monitor.log", cfg.LogFile)
	assert.False(t, cfg.InstallService)
	assert.Equal(t, "http://collector.local:8080/collect", cfg.Endpoint())
}

func TestFromFlagsNoArguments(t *testing.T) {
	_, err := FromFlags(nil, io.Discard)
	assert.ErrorIs(t, err, ErrNoArguments)
}

func TestFromFlagsMissingRequired(t *testing.T) {
	_, err := FromFlags([]string{"--url", "http://collector.local"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required --port")
	assert.Contains(t, err.Error(), "missing required --token")
	assert.NotContains(t, err.Error(), "--url")
}

func TestFromFlagsInvalidValues(t *testing.T) {
	_, err := FromFlags([]string{"--url", "collector.local", "--port", "70000", "--token", "x"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --url")
	assert.Contains(t, err.Error(), "invalid --port 70000")

	_, err = FromFlags([]string{"--port", "abc"}, io.Discard)
	assert.Error(t, err)
}

func TestIntervalClamped(t *testing.T) {
	cfg, err := FromFlags(append(required, "--interval", "0"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Interval)

	cfg, err = FromFlags(append(required, "--interval", "-5"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Interval)

	cfg, err = FromFlags(append(required, "--interval", "15", "--install-service"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Interval)
	assert.True(t, cfg.InstallService)
}

func TestLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: http://from-file
port: 9000
token: file-token
interval: 10
log_file: /tmp/agent-file.log
log_level: debug
`), 0o600))

	t.Setenv("AGENT_MONITOR_TOKEN", "env-token")
	t.Setenv("AGENT_MONITOR_INTERVAL", "5")

	cfg, err := FromFlags([]string{"--config", path, "--interval", "15"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "http://from-file", cfg.ServerURL)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, 15, cfg.Interval)
	assert.Equal(t, "/tmp/agent-file.log", cfg.LogFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestBadEnv(t *testing.T) {
	t.Setenv("AGENT_MONITOR_PORT", "eighty")
	_, err := FromFlags(required, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENT_MONITOR_PORT")
}

func TestLoadFileErrors(t *testing.T) {
	cfg := Default()
	err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("port: [1, 2"), 0o600))
	err = LoadFile(bad, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestEndpointTrimsSlash(t *testing.T) {
	cfg := Config{ServerURL: "https://collector.example/", Port: 443}
	assert.Equal(t, "https://collector.example:443/collect", cfg.Endpoint())
}

func TestArgsRoundTrip(t *testing.T) {
	cfg, err := FromFlags(append(required, "--interval", "5", "--log_file", "/tmp/a.log", "--log_level", "debug"), io.Discard)
	require.NoError(t, err)

	again, err := FromFlags(cfg.Args(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}
