package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DEFAULT_COUNT", "CHUNK_POINTS", "GZIP_ENABLED", "DB_HOST", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 1000, cfg.DefaultCount)
	assert.Equal(t, 100000, cfg.ChunkPoints)
	assert.True(t, cfg.GzipEnabled)
	assert.False(t, cfg.DBEnabled())
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("CHUNK_POINTS", "5000")
	t.Setenv("GZIP_ENABLED", "false")
	t.Setenv("DB_HOST", "db")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("DEFAULT_COUNT", "not-a-number")

	cfg := Load()
	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 5000, cfg.ChunkPoints)
	assert.False(t, cfg.GzipEnabled)
	assert.True(t, cfg.DBEnabled())
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 1000, cfg.DefaultCount)
}

func TestLoadClientDefaults(t *testing.T) {
	for _, key := range []string{"POINTSTREAM_SERVER", "COUNT", "FALLBACK_COUNT", "CANVAS_WIDTH", "CANVAS_HEIGHT", "VIEWER_PORT"} {
		t.Setenv(key, "")
	}

	cfg := LoadClient()
	assert.Equal(t, "http://localhost:3000", cfg.ServerURL)
	assert.Equal(t, 10000, cfg.Count)
	assert.Equal(t, 1000000, cfg.FallbackCount)
	assert.Equal(t, 800, cfg.CanvasWidth)
	assert.Equal(t, 600, cfg.CanvasHeight)
	assert.Empty(t, cfg.ViewerPort)
}
