// internal/config/config_test.go
package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.History.MaxSize)
	assert.Equal(t, 100, cfg.AI.MaxRecords)
	assert.Equal(t, 10, cfg.Optimizer.FullEvery)
	assert.Equal(t, 32, cfg.Optimizer.MaxPartialPaths)
	assert.Equal(t, []string{"characters"}, cfg.Optimizer.SharedKeys)
	assert.Equal(t, 20, cfg.Optimizer.KeepRecent)
	assert.Equal(t, 10, cfg.Optimizer.HotWindow)
	assert.Equal(t, 3, cfg.Optimizer.CompressionLevel)
	assert.Empty(t, cfg.Journal.Path)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenestate.yaml")
	yml := "history:\n  max_size: 5\noptimizer:\n  shared_keys: [characters, assets]\njournal:\n  path: /tmp/j.db\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.History.MaxSize)
	assert.Equal(t, 100, cfg.AI.MaxRecords, "unset keys keep defaults")
	assert.Equal(t, []string{"characters", "assets"}, cfg.Optimizer.SharedKeys)
	assert.Equal(t, "/tmp/j.db", cfg.Journal.Path)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("history: [oops"))
	assert.Error(t, err)

	_, err = Parse([]byte("history:\n  max_size: 0\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Parse([]byte("log_level: loud\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Parse([]byte("optimizer:\n  compression_level: 40\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestClone(t *testing.T) {
	cfg := Default()
	c := cfg.Clone()
	c.Optimizer.SharedKeys[0] = "scenes"
	assert.Equal(t, "characters", cfg.Optimizer.SharedKeys[0])
}

func TestWatch_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenestate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history:\n  max_size: 5\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, 50*time.Millisecond, func(c *Config) { got <- c }))

	// Give the watcher time to start
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("history:\n  max_size: 0\n"), 0644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("history:\n  max_size: 7\n"), 0644))

	select {
	case c := <-got:
		assert.Equal(t, 7, c.History.MaxSize, "invalid reloads are skipped")
	case <-time.After(2 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatch_MissingDir(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/dir/scenestate.yaml", time.Millisecond, func(*Config) {})
	assert.Error(t, err)
}
