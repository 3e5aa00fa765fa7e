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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, int64(2<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "moonshotai/kimi-k2-instruct-0905", cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.InDelta(t, 0.2, cfg.LLM.Generation.AnalyzeTemperature, 1e-9)
	assert.InDelta(t, 0.3, cfg.LLM.Generation.ChatTemperature, 1e-9)
	assert.Equal(t, "js", cfg.Playground.CodeLanguage)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
  max_body_bytes: 1024
llm:
  api_key: "from-file"
  model: "test-model"
  timeout: 5s
`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, int64(1024), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
}

func TestLoad_LegacyKeyVariable(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "gsk-legacy")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gsk-legacy", cfg.LLM.APIKey)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")
	path := writeConfig(t, "server: [unclosed")

	_, err := Load(path)
	assert.Error(t, err)
}
