package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 120, cfg.Tools.TimeoutSeconds)
}

func TestLoadProjectFile(t *testing.T) {
	dir := t.TempDir()
	content := `{
		// project overrides
		"model": "anthropic/claude-sonnet-4-20250514",
		"server": {"port": 9000},
		"tools": {"baseURL": "https://img.example.com"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pixelforge.jsonc"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "anthropic/claude-sonnet-4-20250514", cfg.Model)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "https://img.example.com", cfg.Tools.BaseURL)
}

func TestInterpolateEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_LEDGER_URL", "https://ledger.example.com")
	content := `{"ledger": {"url": "{env:TEST_LEDGER_URL}"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pixelforge.json"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://ledger.example.com", cfg.Ledger.URL)
}

func TestEnvOverridesWin(t *testing.T) {
	dir := t.TempDir()
	content := `{"server": {"port": 9000}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pixelforge.json"), []byte(content), 0o644))

	t.Setenv("PIXELFORGE_PORT", "7000")
	t.Setenv("PIXELFORGE_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
}
