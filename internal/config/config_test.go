package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, DefaultMSAClientID, cfg.MSAClientID)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, 3, cfg.HTTPRetries)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	file := `{"msaClientID": "", "httpTimeoutSeconds": 10, "httpRetries": 1, "logLevel": "debug"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(file), 0644))
	t.Setenv("MCAUTH_HTTP_RETRIES", "5")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultMSAClientID, cfg.MSAClientID)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, 5, cfg.HTTPRetries)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoad_DataDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MCAUTH_DATA_DIR", dir)
	t.Setenv("MCAUTH_CLIENT_ID", "my-client")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "my-client", cfg.MSAClientID)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("MCAUTH_HTTP_TIMEOUT", "soon")

	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLevel_Unknown(t *testing.T) {
	cfg := &Config{LogLevel: "chatty"}
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}
