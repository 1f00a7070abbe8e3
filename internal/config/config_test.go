package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "contracts", cfg.Mongo.Contracts)
	assert.Equal(t, 5*time.Second, cfg.Outbox.SweepInterval)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
admins:
  - "0xAdmin1"
  - "0xAdmin2"
mongo:
  db: trade
webhook:
  url: https://hooks.example.com/ledger
`), 0o600))

	t.Setenv("PORT", "7070")
	t.Setenv("ADMINS", "0xOnly")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port, "env beats file")
	assert.Equal(t, []string{"0xOnly"}, cfg.Admins)
	assert.Equal(t, "trade", cfg.Mongo.DB)
	assert.Equal(t, "https://hooks.example.com/ledger", cfg.Webhook.URL)
	// file only set db; collection names keep their defaults
	assert.Equal(t, "contracts", cfg.Mongo.Contracts)
}
