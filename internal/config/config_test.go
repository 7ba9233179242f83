package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Missing(t *testing.T) {
	cfg, info, err := LoadFile(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	assert.False(t, info.PortSpecified)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
	assert.Equal(t, "auto", cfg.Classifier.Mode)
}

func TestLoadFile_OverridesAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 18080

[classifier]
mode = "disabled"
timeout_sec = 3

[validation]
disabled_rules = ["format-name"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("SCOREINTAKE_OPENAI_API_KEY", "sk-test")
	t.Setenv("SCOREINTAKE_REDIS_ADDR", "localhost:6379")

	cfg, info, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, info.PortSpecified)
	assert.Equal(t, 18080, cfg.Server.Port)
	assert.Equal(t, "disabled", cfg.Classifier.Mode)
	assert.Equal(t, "sk-test", cfg.Classifier.APIKey)
	assert.True(t, cfg.Classifier.Enabled())
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, []string{"format-name"}, cfg.Validation.DisabledRules)
	assert.Equal(t, 5.0, cfg.Validation.TotalTolerance)
	assert.Equal(t, int64(3), int64(cfg.Classifier.Timeout().Seconds()))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Server.Port = 9999
	require.NoError(t, SaveConfig(cfg, path))

	loaded, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Server.Port)
}
