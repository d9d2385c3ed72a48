package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"CINEQUERY_CONFIG_PATH", "CINEQUERY_SERVER_HOST", "CINEQUERY_SERVER_PORT",
		"CINEQUERY_CORS_ORIGIN", "CINEQUERY_TRANSPORT_MODE", "CINEQUERY_DB_PATH",
		"CINEQUERY_LOG_LEVEL", "CINEQUERY_DATASET_SOURCE", "CINEQUERY_DIRECTOR_MATCH",
		"CINEQUERY_AUTH_ENABLED", "CINEQUERY_API_KEYS", "CINEQUERY_LLM_TIMEOUT",
		"GEMINI_API_KEY", "GEMINI_MODEL",
		"AWS_REGION", "AWS_ENDPOINT_URL", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, ModeHTTP, cfg.Transport.Mode)
	require.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	require.Equal(t, "substring", cfg.Dataset.DirectorMatch)
	require.Equal(t, "exact", cfg.Dataset.GenreMatch)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  cors_origin: https://movies.example
dataset:
  source: s3://snapshots/movies.json
  director_match: exact
llm:
  model: gemini-test
  timeout: 5s
auth:
  enabled: true
  keys:
    - client: web
      token: file-token
`), 0o644))

	t.Setenv("CINEQUERY_CONFIG_PATH", path)
	t.Setenv("CINEQUERY_SERVER_PORT", "9100")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("CINEQUERY_API_KEYS", "cli:env-token, batch:other")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "https://movies.example", cfg.Server.CORSOrigin)
	require.Equal(t, "s3://snapshots/movies.json", cfg.Dataset.Source)
	require.Equal(t, "exact", cfg.Dataset.DirectorMatch)
	require.Equal(t, "gemini-test", cfg.LLM.Model)
	require.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	require.Equal(t, "secret", cfg.LLM.APIKey)
	require.Equal(t, []APIKey{
		{Client: "web", Token: "file-token"},
		{Client: "cli", Token: "env-token"},
		{Client: "batch", Token: "other"},
	}, cfg.Auth.Keys)
}

func TestLoad_InvalidEnv(t *testing.T) {
	cases := map[string]string{
		"CINEQUERY_SERVER_PORT":    "eighty",
		"CINEQUERY_LLM_TIMEOUT":    "soon",
		"CINEQUERY_AUTH_ENABLED":   "maybe",
		"CINEQUERY_API_KEYS":       "missing-colon",
		"CINEQUERY_TRANSPORT_MODE": "grpc",
		"CINEQUERY_DIRECTOR_MATCH": "fuzzy",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CINEQUERY_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.ErrorContains(t, err, "read config file")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Server.Port = 70000
	cfg.LLM.Timeout = 0
	cfg.Auth.Enabled = true
	err := cfg.Validate()
	require.ErrorContains(t, err, "server.port")
	require.ErrorContains(t, err, "llm.timeout")
	require.ErrorContains(t, err, "auth.enabled requires")
}
