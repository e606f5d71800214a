package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile_FallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, defaultListenPort, cfg.ListenPort)
	assert.Equal(t, defaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, defaultNoCredentialStatus, cfg.NoCredentialStatus)
}

func TestLoad_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pollux.yaml")
	yamlContent := `
listen_addr: "127.0.0.1"
listen_port: 9090
database_url: "redis://localhost:6379/0"
pollux_key: "secret-key"
big_model_list:
  - gemini-2.5-pro
providers:
  geminicli:
    model_list:
      - gemini-2.5-pro
      - gemini-2.5-flash
    client_id: cid
    client_secret: csecret
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.ListenAddr)
	assert.Equal(t, 9090, cfg.ListenPort)
	assert.Equal(t, "redis://localhost:6379/0", cfg.DatabaseURL)
	assert.Equal(t, "secret-key", cfg.PolluxKey)
	assert.Equal(t, []string{"gemini-2.5-pro"}, cfg.BigModelList)
	assert.True(t, cfg.IsBigModel("gemini-2.5-pro"))
	assert.False(t, cfg.IsBigModel("gemini-2.5-flash"))
	assert.Equal(t, "cid", cfg.Providers.GeminiCLI.ClientID)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pollux.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_port: 9090\n"), 0o600))

	t.Setenv("LISTEN_PORT", "7070")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.ListenPort)
}
