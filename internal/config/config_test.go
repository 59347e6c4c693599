package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, path string, values map[string]any) {
	t.Helper()
	data, err := json.Marshal(values)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0600))
}

// isolateHome points the global config lookup at an empty temp dir so
// a developer's real ~/.mrpilot does not leak into tests.
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolateHome(t)
	t.Setenv("MRPILOT_GITLAB_TOKEN", "glpat-test")
	t.Setenv("MRPILOT_LLM_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://gitlab.com", cfg.GitLabURL)
	assert.Equal(t, "origin", cfg.Remote)
	assert.Equal(t, 5, cfg.MaxInlineComments)
	assert.Equal(t, 5, cfg.ChangesPollAttempts)
	assert.Equal(t, 2, cfg.ChangesPollDelaySec)
	assert.Equal(t, ".gitlab-ci.yml", cfg.CIConfigPath)
	assert.Contains(t, cfg.ProtectedBranches, "main")
	assert.Contains(t, cfg.ProtectedBranches, "develop")
}

func TestLoadLocalOverridesGlobal(t *testing.T) {
	isolateHome(t)
	t.Setenv("MRPILOT_LLM_API_KEY", "sk-test")

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	writeJSON(t, filepath.Join(home, ".mrpilot", "config.json"), map[string]any{
		"gitlab_token": "global-token",
		"llm_model":    "global-model",
	})

	local := filepath.Join(t.TempDir(), "mrpilot.json")
	writeJSON(t, local, map[string]any{"llm_model": "local-model"})

	cfg, err := Load(local)
	require.NoError(t, err)

	assert.Equal(t, "global-token", cfg.GitLabToken)
	assert.Equal(t, "local-model", cfg.LLMModel)
}

func TestLoadEnvOverridesFiles(t *testing.T) {
	isolateHome(t)
	t.Setenv("MRPILOT_LLM_API_KEY", "sk-test")
	t.Setenv("MRPILOT_GITLAB_TOKEN", "env-token")

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	writeJSON(t, filepath.Join(home, ".mrpilot", "config.json"), map[string]any{
		"gitlab_token": "file-token",
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.GitLabToken)
}

func TestLoadValidation(t *testing.T) {
	isolateHome(t)

	// Missing required credentials must fail before any workflow runs.
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestIsProtected(t *testing.T) {
	cfg := &Configuration{ProtectedBranches: []string{"main", "develop"}}

	assert.True(t, cfg.IsProtected("main"))
	assert.True(t, cfg.IsProtected("develop"))
	assert.False(t, cfg.IsProtected("feature/ABC-1-x"))
	assert.False(t, cfg.IsProtected("Main"))
}

func TestSaveMergesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]any{"gitlab_token": "old", "remote": "origin"})

	require.NoError(t, Save(path, map[string]any{"gitlab_token": "new"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "new", got["gitlab_token"])
	assert.Equal(t, "origin", got["remote"])
}
