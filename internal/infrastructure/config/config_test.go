package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/menu-core/internal/domain/matching"
)

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "QDRANT_API_KEY", "MENU_DB_PATH", "MENU_LOG_LEVEL", "MENU_SERVER_ADDR"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestDefault_MatchesEngineDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	opts := cfg.Matching.EngineOptions()
	defaults := matching.DefaultOptions()
	assert.Equal(t, defaults.Policy, opts.Policy)
	assert.Equal(t, defaults.Weights, opts.Weights)
	assert.Equal(t, defaults.Stoplist, opts.Stoplist)
	assert.Equal(t, defaults.StripPatterns, opts.StripPatterns)
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Matching.HighThreshold)
	assert.Equal(t, 20, cfg.Matching.CandidateLimit)
	assert.Equal(t, matching.DefaultStoplist, cfg.Matching.Stoplist)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, filepath.Join(dir, ".menu", "menu.db"), cfg.SQLite.Path)
	assert.False(t, cfg.Ledger.AutoPromote)
	assert.Equal(t, 3, cfg.Ledger.PromoteThreshold)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "menu init")
}

func TestWriteDefault_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))
	assert.True(t, Exists(dir))

	err := WriteDefault(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))

	t.Setenv("MENU_DB_PATH", ":memory:")
	t.Setenv("MENU_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.SQLite.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "sk-test", cfg.Embedder.APIKey)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MENU_LOG_LEVEL=debug\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RelativeDatabasePath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg := Default()
	cfg.SQLite.Path = "data/menu.db"
	require.NoError(t, Write(dir, cfg))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "menu.db"), loaded.SQLite.Path)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "low above high",
			mutate:  func(c *Config) { c.Matching.LowThreshold = 0.95 },
			wantErr: "matching",
		},
		{
			name:    "weight out of range",
			mutate:  func(c *Config) { c.Matching.Weights.Jaccard = 1.5 },
			wantErr: "matching.weights",
		},
		{
			name:    "bad strip pattern",
			mutate:  func(c *Config) { c.Matching.StripPatterns = []string{`(`} },
			wantErr: "strip_patterns",
		},
		{
			name:    "zero promote threshold",
			mutate:  func(c *Config) { c.Ledger.PromoteThreshold = 0 },
			wantErr: "promote_threshold",
		},
		{
			name:    "zero batch limit",
			mutate:  func(c *Config) { c.Server.BatchLimit = 0 },
			wantErr: "batch_limit",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name: "semantic without rate",
			mutate: func(c *Config) {
				c.Semantic.Enabled = true
				c.Embedder.RequestsPerSecond = 0
			},
			wantErr: "requests_per_second",
		},
		{
			name: "semantic rate ignored when disabled",
			mutate: func(c *Config) {
				c.Embedder.RequestsPerSecond = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
