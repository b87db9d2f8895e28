package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete docindex configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Indexing IndexingConfig `yaml:"indexing" json:"indexing"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Watch    WatchConfig    `yaml:"watch" json:"watch"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// PathsConfig configures which files are considered at all.
type PathsConfig struct {
	// ExcludedExtensions are dropped by extension, compared case-insensitively.
	ExcludedExtensions []string `yaml:"excluded_extensions" json:"excluded_extensions"`
	// ExcludedPaths are dropped when the path contains the entry, case-insensitively.
	ExcludedPaths []string `yaml:"excluded_paths" json:"excluded_paths"`
}

// IndexingConfig configures the incremental index engine.
type IndexingConfig struct {
	Workers       int    `yaml:"workers" json:"workers"`
	BatchSize     int    `yaml:"batch_size" json:"batch_size"`
	ParseTimeout  string `yaml:"parse_timeout" json:"parse_timeout"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	// Serial disables the worker pool and parses one file at a time.
	Serial bool `yaml:"serial" json:"serial"`
}

// SearchConfig configures the search engine.
type SearchConfig struct {
	// Backend selects the full-text store: "sqlite" (default) or "bleve".
	Backend      string `yaml:"backend" json:"backend"`
	CacheSize    int    `yaml:"cache_size" json:"cache_size"`
	HistorySize  int    `yaml:"history_size" json:"history_size"`
	DefaultLimit int    `yaml:"default_limit" json:"default_limit"`
	DefaultMode  string `yaml:"default_mode" json:"default_mode"`
}

// StoreConfig configures where indexes live.
type StoreConfig struct {
	DataDir       string `yaml:"data_dir" json:"data_dir"`
	SQLiteCacheMB int    `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

// ServerConfig configures the stdio tool server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

var defaultExcludedExtensions = []string{".exe", ".dll", ".sys", ".tmp", ".so", ".dylib", ".o"}

var defaultExcludedPaths = []string{
	string(filepath.Separator) + ".git" + string(filepath.Separator),
	string(filepath.Separator) + "node_modules" + string(filepath.Separator),
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			ExcludedExtensions: append([]string(nil), defaultExcludedExtensions...),
			ExcludedPaths:      append([]string(nil), defaultExcludedPaths...),
		},
		Indexing: IndexingConfig{
			Workers:       runtime.NumCPU(),
			BatchSize:     100,
			ParseTimeout:  "30s",
			MaxFileSizeMB: 100,
		},
		Search: SearchConfig{
			Backend:      "sqlite",
			CacheSize:    100,
			HistorySize:  50,
			DefaultLimit: 20,
			DefaultMode:  "fuzzy",
		},
		Store: StoreConfig{
			DataDir:       DefaultDataDir(),
			SQLiteCacheMB: 64,
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// DefaultDataDir returns ~/.docindex, where libraries and their databases live.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docindex")
	}
	return filepath.Join(home, ".docindex")
}

// GetUserConfigPath returns the user configuration file, following XDG:
//   - $XDG_CONFIG_HOME/docindex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docindex/config.yaml
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "docindex", "config.yaml")
}

// Load loads configuration for dir, in order of increasing precedence:
//  1. Defaults
//  2. User config (~/.config/docindex/config.yaml)
//  3. Project config (.docindex.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. DOCINDEX_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ProjectConfigPath returns the project config path in dir, preferring .yaml.
func ProjectConfigPath(dir string) string {
	yml := filepath.Join(dir, ".docindex.yml")
	if !fileExists(filepath.Join(dir, ".docindex.yaml")) && fileExists(yml) {
		return yml
	}
	return filepath.Join(dir, ".docindex.yaml")
}

func (c *Config) loadFromFile(dir string) error {
	path := ProjectConfigPath(dir)
	if !fileExists(path) {
		return nil
	}
	return c.loadYAML(path)
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies the non-zero values of other into c. Exclusion lists
// extend the defaults rather than replace them.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	c.Paths.ExcludedExtensions = appendUnique(c.Paths.ExcludedExtensions, other.Paths.ExcludedExtensions...)
	c.Paths.ExcludedPaths = appendUnique(c.Paths.ExcludedPaths, other.Paths.ExcludedPaths...)

	if other.Indexing.Workers != 0 {
		c.Indexing.Workers = other.Indexing.Workers
	}
	if other.Indexing.BatchSize != 0 {
		c.Indexing.BatchSize = other.Indexing.BatchSize
	}
	if other.Indexing.ParseTimeout != "" {
		c.Indexing.ParseTimeout = other.Indexing.ParseTimeout
	}
	if other.Indexing.MaxFileSizeMB != 0 {
		c.Indexing.MaxFileSizeMB = other.Indexing.MaxFileSizeMB
	}
	if other.Indexing.Serial {
		c.Indexing.Serial = true
	}

	if other.Search.Backend != "" {
		c.Search.Backend = other.Search.Backend
	}
	if other.Search.CacheSize != 0 {
		c.Search.CacheSize = other.Search.CacheSize
	}
	if other.Search.HistorySize != 0 {
		c.Search.HistorySize = other.Search.HistorySize
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.DefaultMode != "" {
		c.Search.DefaultMode = other.Search.DefaultMode
	}

	if other.Store.DataDir != "" {
		c.Store.DataDir = other.Store.DataDir
	}
	if other.Store.SQLiteCacheMB != 0 {
		c.Store.SQLiteCacheMB = other.Store.SQLiteCacheMB
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies DOCINDEX_* environment variable overrides.
// Malformed numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("DOCINDEX_WORKERS", &c.Indexing.Workers)
	setInt("DOCINDEX_BATCH_SIZE", &c.Indexing.BatchSize)
	setString("DOCINDEX_PARSE_TIMEOUT", &c.Indexing.ParseTimeout)
	setInt("DOCINDEX_MAX_FILE_SIZE_MB", &c.Indexing.MaxFileSizeMB)
	setString("DOCINDEX_BACKEND", &c.Search.Backend)
	setInt("DOCINDEX_CACHE_SIZE", &c.Search.CacheSize)
	setString("DOCINDEX_DATA_DIR", &c.Store.DataDir)
	setString("DOCINDEX_LOG_LEVEL", &c.Server.LogLevel)

	if v := os.Getenv("DOCINDEX_SERIAL"); v != "" {
		c.Indexing.Serial = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Indexing.Workers < 1 {
		return fmt.Errorf("indexing.workers must be at least 1, got %d", c.Indexing.Workers)
	}
	if c.Indexing.BatchSize < 1 {
		return fmt.Errorf("indexing.batch_size must be at least 1, got %d", c.Indexing.BatchSize)
	}
	if d, err := time.ParseDuration(c.Indexing.ParseTimeout); err != nil || d <= 0 {
		return fmt.Errorf("indexing.parse_timeout must be a positive duration, got %q", c.Indexing.ParseTimeout)
	}
	if c.Indexing.MaxFileSizeMB < 1 {
		return fmt.Errorf("indexing.max_file_size_mb must be at least 1, got %d", c.Indexing.MaxFileSizeMB)
	}

	switch strings.ToLower(c.Search.Backend) {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("search.backend must be 'sqlite' or 'bleve', got %s", c.Search.Backend)
	}
	if c.Search.CacheSize < 1 {
		return fmt.Errorf("search.cache_size must be at least 1, got %d", c.Search.CacheSize)
	}
	if c.Search.HistorySize < 1 {
		return fmt.Errorf("search.history_size must be at least 1, got %d", c.Search.HistorySize)
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.default_limit must be at least 1, got %d", c.Search.DefaultLimit)
	}
	switch strings.ToLower(c.Search.DefaultMode) {
	case "exact", "fuzzy":
	default:
		return fmt.Errorf("search.default_mode must be 'exact' or 'fuzzy', got %s", c.Search.DefaultMode)
	}

	if c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir must not be empty")
	}
	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d < 0 {
		return fmt.Errorf("watch.debounce must be a duration, got %q", c.Watch.Debounce)
	}

	if !strings.EqualFold(c.Server.Transport, "stdio") {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// ParseTimeout returns the per-file parse timeout. Call after Validate.
func (c *Config) ParseTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Indexing.ParseTimeout)
	return d
}

// WatchDebounce returns the watch debounce interval. Call after Validate.
func (c *Config) WatchDebounce() time.Duration {
	d, _ := time.ParseDuration(c.Watch.Debounce)
	return d
}

// MaxFileSize returns the file size ceiling in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Indexing.MaxFileSizeMB) * 1024 * 1024
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func appendUnique(base []string, extra ...string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range extra {
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		base = append(base, s)
	}
	return base
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
