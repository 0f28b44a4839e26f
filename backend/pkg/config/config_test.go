package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "knowledge-base/backend/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("GRAPH_BACKEND", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENV", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.GraphBackend)
	assert.Equal(t, "dev-insecure-secret", cfg.JWTSecret)
	assert.Equal(t, 60*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, DefaultAllowedScrapeDomains, cfg.AllowedScrapeDomains)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.UsesNeo4j())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
database_path: /tmp/kb.db
access_token_ttl: 15m
allowed_scrape_domains:
  - example.com
rate_limit_api: 50
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")
	t.Setenv("RATE_LIMIT_LOGIN", "9")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "/tmp/kb.db", cfg.DatabasePath)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, []string{"example.com"}, cfg.AllowedScrapeDomains)
	assert.Equal(t, 50, cfg.RateLimitAPI)
	assert.Equal(t, 9, cfg.RateLimitLogin)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		errType apperrors.ErrorType
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name: "production requires a secret",
			mutate: func(c *Config) {
				c.Env = "production"
				c.JWTSecret = ""
			},
			errType: apperrors.ErrorTypeConfig,
		},
		{
			name:    "unknown graph backend",
			mutate:  func(c *Config) { c.GraphBackend = "dgraph" },
			errType: apperrors.ErrorTypeConfig,
		},
		{
			name: "neo4j needs a uri",
			mutate: func(c *Config) {
				c.GraphBackend = "neo4j"
				c.Neo4jURI = ""
			},
			errType: apperrors.ErrorTypeConfig,
		},
		{
			name:    "non-positive upload limit",
			mutate:  func(c *Config) { c.MaxUploadBytes = 0 },
			errType: apperrors.ErrorTypeConfig,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.DatabasePath = "" },
			errType: apperrors.ErrorTypeConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errType == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.IsErrorType(err, tt.errType), "got %v", err)
		})
	}
}
