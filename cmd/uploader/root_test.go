package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sir_venger/girder_uploader/internal/app/girderhttp"
	"github.com/sir_venger/girder_uploader/internal/logger"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newAPI(t *testing.T) string {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, os.WriteFile(os.Getenv("CONFIG_PATH"), []byte("log_level: error\nclient:\n  chunk_size: 1KiB\n"), 0o644))

	ts := httptest.NewServer(girderhttp.New(girderhttp.Options{
		DataDir: t.TempDir(),
		Tokens:  []string{"cli-token"},
		Log:     logger.Nop(),
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestUploadThenInspect(t *testing.T) {
	api := newAPI(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(a, bytes.Repeat([]byte("hello\n"), 1000), 0o644))
	require.NoError(t, os.WriteFile(b, nil, 0o644))

	out, err := runCLI(t, "--api-url", api, "--token", "cli-token", "upload", "--parent-id", "f1", "--no-progress", a, b)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[0], "\t")
	require.Len(t, fields, 3)
	assert.Equal(t, "a.txt", fields[2])

	out, err = runCLI(t, "--api-url", api, "--token", "cli-token", "file", fields[0])
	require.NoError(t, err)
	assert.Contains(t, out, `"size": 6000`)
	assert.Contains(t, out, `"mime_type": "text/plain; charset=utf-8"`)

	_, err = runCLI(t, "--api-url", api, "--token", "cli-token", "abort", fields[1])
	require.NoError(t, err)

	_, err = runCLI(t, "--api-url", api, "--token", "cli-token", "file", fields[0])
	require.Error(t, err)
}

func TestWhoami(t *testing.T) {
	api := newAPI(t)

	out, err := runCLI(t, "--api-url", api, "--token", "cli-token", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `"login": "user1"`)

	out, err = runCLI(t, "--api-url", api, "--token", "wrong", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "anonymous\n", out)
}

func TestUpload_RequiresParent(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := runCLI(t, "--api-url", "http://127.0.0.1:1", "upload", "x")
	require.Error(t, err)
}
