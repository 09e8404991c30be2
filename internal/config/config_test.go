package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile_YAMLAndDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
client:
  api_url: http://localhost:8080/api/v1
  chunk_size: 8MiB
  retry:
    max_attempts: 3
    initial_interval: 50ms
    max_interval: 1s
stub:
  data_dir: /tmp/stub
  tokens: [a, b]
`)

	cfg, err := LoadFile(path, true)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://localhost:8080/api/v1", cfg.Client.APIURL)
	assert.Equal(t, ByteSize(8<<20), cfg.Client.ChunkSize)
	assert.Equal(t, 3, cfg.Client.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Client.Retry.InitialInterval)
	assert.Equal(t, DefaultConcurrency, cfg.Client.Concurrency)
	assert.Equal(t, []string{"a", "b"}, cfg.Stub.Tokens)
	assert.Equal(t, DefaultListenAddr, cfg.Stub.ListenAddr)
	require.NoError(t, cfg.ValidateClient())
	require.NoError(t, cfg.ValidateStub())
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "client:\n  api_url: http://a\n")
	t.Setenv("API_URL", "http://b")
	t.Setenv("GIRDER_TOKEN", "secret")
	t.Setenv("CHUNK_SIZE", "1KiB")
	t.Setenv("STUB_TOKENS", "x, ,y")

	cfg, err := LoadFile(path, true)
	require.NoError(t, err)

	assert.Equal(t, "http://b", cfg.Client.APIURL)
	assert.Equal(t, "secret", cfg.Client.Token)
	assert.Equal(t, ByteSize(1024), cfg.Client.ChunkSize)
	assert.Equal(t, []string{"x", "y"}, cfg.Stub.Tokens)
}

func TestLoadFile_MissingOptionalFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, ByteSize(DefaultChunkSize), cfg.Client.ChunkSize)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), true)
	require.Error(t, err)
}

func TestLoadFile_BadChunkSize(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "lots")
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.Error(t, err)
}

func TestValidateClient(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.ValidateClient(), "api_url is required")

	cfg.Client.APIURL = "http://localhost"
	require.NoError(t, cfg.ValidateClient())

	cfg.Client.Retry.MaxAttempts = 0
	require.Error(t, cfg.ValidateClient())
}
