package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/adpulse-cli/internal/analysis"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, analysis.DefaultRuleSettings(), c.Rules)
	assert.Equal(t, "mock", c.NarrateProvider)
	assert.Equal(t, "markdown", c.OutputFormat)
	assert.Equal(t, ":8080", c.ServerAddr)
	assert.Equal(t, 4, c.BatchWorkers)
	assert.Equal(t, int64(10<<20), c.MaxInputBytes)
	assert.Equal(t, c, Default())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ADPULSE_RULES_MIN_SPEND", "100")
	t.Setenv("ADPULSE_LOG_LEVEL", "debug")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100.0, c.Rules.MinSpend)
	assert.Equal(t, 1.5, c.Rules.ROASGuardrail)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")

	c := Default()
	c.Rules.FatigueDrop = 0.4
	c.NarrateProvider = "ollama"
	require.NoError(t, Save(c, path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.4, back.Rules.FatigueDrop)
	assert.Equal(t, "ollama", back.NarrateProvider)
}

func TestSaveDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, Save(Default(), ""))
	_, err := os.Stat(filepath.Join(home, ".adpulse", "config.yaml"))
	require.NoError(t, err)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mock", c.NarrateProvider)
}

func TestLoadRejectsInvalidRules(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  roas_critical: 3\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid rules")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
