package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty directory so the developer's
// own ~/.config does not leak into tests.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, runtime.NumCPU(), cfg.Indexing.Workers)
	assert.Equal(t, 100, cfg.Indexing.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.ParseTimeout())
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize())
	assert.False(t, cfg.Indexing.Serial)
	assert.Equal(t, "sqlite", cfg.Search.Backend)
	assert.Equal(t, 100, cfg.Search.CacheSize)
	assert.Equal(t, 50, cfg.Search.HistorySize)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce())
	assert.Contains(t, cfg.Paths.ExcludedExtensions, ".exe")
	require.NoError(t, cfg.Validate())
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	isolate(t)

	// Given: a project config
	dir := t.TempDir()
	yaml := `
indexing:
  workers: 3
  batch_size: 25
  parse_timeout: 5s
paths:
  excluded_extensions: [".bak"]
search:
  backend: bleve
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docindex.yaml"), []byte(yaml), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: file values win and exclusions extend the defaults
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Indexing.Workers)
	assert.Equal(t, 25, cfg.Indexing.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.ParseTimeout())
	assert.Equal(t, "bleve", cfg.Search.Backend)
	assert.Contains(t, cfg.Paths.ExcludedExtensions, ".bak")
	assert.Contains(t, cfg.Paths.ExcludedExtensions, ".exe")
	assert.Equal(t, 100, cfg.Search.CacheSize)
}

func TestLoad_YmlFallback(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docindex.yml"), []byte("search:\n  cache_size: 7\n"), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.CacheSize)
}

func TestLoad_UserConfigThenProject(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "docindex"), 0o755))
	require.NoError(t, os.WriteFile(GetUserConfigPath(), []byte("search:\n  cache_size: 11\n  history_size: 9\n"), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docindex.yaml"), []byte("search:\n  cache_size: 22\n"), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 22, cfg.Search.CacheSize)
	assert.Equal(t, 9, cfg.Search.HistorySize)
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docindex.yaml"), []byte("indexing:\n  workers: 3\n"), 0o644))
	t.Setenv("DOCINDEX_WORKERS", "6")
	t.Setenv("DOCINDEX_SERIAL", "true")
	t.Setenv("DOCINDEX_CACHE_SIZE", "not-a-number")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Indexing.Workers)
	assert.True(t, cfg.Indexing.Serial)
	assert.Equal(t, 100, cfg.Search.CacheSize)
}

func TestLoad_DotEnvFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCINDEX_BATCH_SIZE=42\n"), 0o644))
	// godotenv sets process env; restore it afterwards.
	t.Setenv("DOCINDEX_BATCH_SIZE", "")
	require.NoError(t, os.Unsetenv("DOCINDEX_BATCH_SIZE"))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Indexing.BatchSize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docindex.yaml"), []byte("indexing: [unclosed"), 0o644))

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero workers", func(c *Config) { c.Indexing.Workers = 0 }, "indexing.workers"},
		{"zero batch", func(c *Config) { c.Indexing.BatchSize = 0 }, "indexing.batch_size"},
		{"bad timeout", func(c *Config) { c.Indexing.ParseTimeout = "soon" }, "indexing.parse_timeout"},
		{"negative timeout", func(c *Config) { c.Indexing.ParseTimeout = "-1s" }, "indexing.parse_timeout"},
		{"unknown backend", func(c *Config) { c.Search.Backend = "redis" }, "search.backend"},
		{"zero cache", func(c *Config) { c.Search.CacheSize = 0 }, "search.cache_size"},
		{"bad mode", func(c *Config) { c.Search.DefaultMode = "regex" }, "search.default_mode"},
		{"empty data dir", func(c *Config) { c.Store.DataDir = "" }, "store.data_dir"},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "x" }, "watch.debounce"},
		{"bad transport", func(c *Config) { c.Server.Transport = "sse" }, "server.transport"},
		{"bad level", func(c *Config) { c.Server.LogLevel = "trace" }, "server.log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Indexing.BatchSize = 64

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".docindex.yaml")))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 64, loaded.Indexing.BatchSize)
	// Exclusions are de-duplicated on merge.
	assert.Equal(t, cfg.Paths.ExcludedExtensions, loaded.Paths.ExcludedExtensions)
}

// =============================================================================
// Backups
// =============================================================================

func TestBackupFile_MissingIsNoop(t *testing.T) {
	path, err := BackupFile(filepath.Join(t.TempDir(), ".docindex.yaml"))

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupFile_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, ".docindex.yaml")
	require.NoError(t, os.WriteFile(target, []byte("version: 1\n"), 0o644))

	for i := 0; i < MaxBackups+2; i++ {
		_, err := BackupFile(target)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	backups, err := ListBackups(target)
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)

	data, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}
