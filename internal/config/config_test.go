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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 2, cfg.Blocker.Similarity)
	assert.Equal(t, 7*24*time.Hour, cfg.Blocker.CacheTTL())
	assert.Equal(t, 30*time.Minute, cfg.Blocker.MuteDuration())
	assert.True(t, cfg.Blocker.RecallFlag)
	assert.False(t, cfg.Blocker.MuteFlag)
	assert.Equal(t, 5, cfg.Blocker.PageSize)
	assert.True(t, cfg.Blocker.FailClosed)
	assert.Equal(t, 4, cfg.Import.Workers)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
blocker:
  similarity: 5
  mute_flag: true
  mute_time: 10
  fetch_timeout: 3s
cache:
  backend: database
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Blocker.Similarity)
	assert.True(t, cfg.Blocker.MuteFlag)
	assert.Equal(t, 10*time.Minute, cfg.Blocker.MuteDuration())
	assert.Equal(t, 3*time.Second, cfg.Blocker.FetchTimeout)
	assert.Equal(t, "database", cfg.Cache.Backend)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"similarity too high", "blocker:\n  similarity: 15\n"},
		{"negative similarity", "blocker:\n  similarity: -1\n"},
		{"bad hash bits", "blocker:\n  hash_bits: 12\n"},
		{"zero page size", "blocker:\n  page_size: 0\n"},
		{"unknown cache", "cache:\n  backend: memcached\n"},
		{"redis without url", "cache:\n  backend: redis\n"},
		{"onebot without url", "moderation:\n  driver: onebot\n"},
		{"unknown driver", "database:\n  driver: mysql\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REDIS_URL", "")
			t.Setenv("ONEBOT_BASE_URL", "")
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	pg := &DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "guard", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/guard?sslmode=disable", pg.DSN())

	pg.URL = "postgres://override"
	assert.Equal(t, "postgres://override", pg.DSN())

	lite := &DatabaseConfig{Driver: "sqlite", Path: "data/x.db"}
	assert.Contains(t, lite.DSN(), "data/x.db?")
	assert.Contains(t, lite.DSN(), "_txlock=immediate")
}
