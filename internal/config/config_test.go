package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg := Load()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.ListenAddr)
	assert.NotEmpty(t, cfg.DBPath)
	assert.NotEmpty(t, cfg.DraftKey)
	assert.Positive(t, cfg.PhotoQuota)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("DB_PATH", "/custom/db.sqlite")
	t.Setenv("SUBMIT_URL", "https://example.com/listings")
	t.Setenv("SUBMIT_TIMEOUT", "5s")
	t.Setenv("PHOTO_QUOTA", "40")
	t.Setenv("DRAFT_KEY", "draft")
	t.Setenv("SESSION_IDLE_TIMEOUT", "30m")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/custom/db.sqlite", cfg.DBPath)
	assert.Equal(t, "https://example.com/listings", cfg.SubmitURL)
	assert.Equal(t, 5*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, 40, cfg.PhotoQuota)
	assert.Equal(t, "draft", cfg.DraftKey)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdle)
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("PHOTO_QUOTA", "lots")
	t.Setenv("SUBMIT_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 100, cfg.PhotoQuota)
	assert.Equal(t, 60*time.Second, cfg.SubmitTimeout)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SPOOL_PATH=/tmp/from-dotenv\n"), 0600))
	t.Chdir(dir)
	t.Setenv("SPOOL_PATH", "")
	require.NoError(t, os.Unsetenv("SPOOL_PATH"))

	cfg := Load()

	assert.Equal(t, "/tmp/from-dotenv", cfg.SpoolPath)
	require.NoError(t, os.Unsetenv("SPOOL_PATH"))
}
