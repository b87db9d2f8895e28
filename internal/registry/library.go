package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

const (
	// DefaultLibrary always exists and cannot be removed.
	DefaultLibrary = "default"

	// catalogFileName is the library catalog inside the data directory.
	catalogFileName = "libraries.yaml"

	// librariesDir holds the per-library index files.
	librariesDir = "libraries"

	maxNameLength = 64
)

var validNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Library is a named index with its own store, roots and search history.
type Library struct {
	Name      string    `yaml:"name" json:"name"`
	DBPath    string    `yaml:"db_path" json:"db_path"`
	Roots     []string  `yaml:"roots,omitempty" json:"roots,omitempty"`
	Created   time.Time `yaml:"created" json:"created"`
	LastUsed  time.Time `yaml:"last_used" json:"last_used"`
	DocCount  int       `yaml:"doc_count" json:"doc_count"`
	SizeBytes int64     `yaml:"size_bytes" json:"size_bytes"`
	Enabled   bool      `yaml:"enabled" json:"enabled"`
}

type catalogFile struct {
	Libraries []*Library `yaml:"libraries"`
}

// ValidateName checks a library name. Valid names contain only letters,
// numbers, hyphens and underscores.
func ValidateName(name string) error {
	if name == "" {
		return docerrors.New(docerrors.ErrCodeInvalidInput, "library name cannot be empty", nil)
	}
	if len(name) > maxNameLength {
		return docerrors.New(docerrors.ErrCodeInvalidInput,
			fmt.Sprintf("library name too long (max %d chars)", maxNameLength), nil)
	}
	if !validNamePattern.MatchString(name) {
		return docerrors.New(docerrors.ErrCodeInvalidInput,
			"library name can only contain letters, numbers, hyphens, and underscores", nil).
			WithDetail("name", name)
	}
	return nil
}

// Catalog is the set of libraries persisted in <dataDir>/libraries.yaml.
// Safe for concurrent use; every mutation is written through.
type Catalog struct {
	mu        sync.Mutex
	dataDir   string
	libraries map[string]*Library
}

// LoadCatalog reads the catalog in dataDir, creating it with the default
// library when missing.
func LoadCatalog(dataDir string) (*Catalog, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	c := &Catalog{dataDir: dataDir, libraries: make(map[string]*Library)}

	data, err := os.ReadFile(c.path())
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", catalogFileName, err)
	default:
		var f catalogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, docerrors.New(docerrors.ErrCodeConfigInvalid,
				"failed to parse "+catalogFileName, err).WithDetail("path", c.path())
		}
		for _, lib := range f.Libraries {
			if lib == nil || ValidateName(lib.Name) != nil {
				continue
			}
			c.libraries[lib.Name] = lib
		}
	}

	if _, ok := c.libraries[DefaultLibrary]; !ok {
		c.libraries[DefaultLibrary] = c.newLibrary(DefaultLibrary)
		if err := c.save(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DataDir returns the directory holding the catalog and library indexes.
func (c *Catalog) DataDir() string {
	return c.dataDir
}

func (c *Catalog) path() string {
	return filepath.Join(c.dataDir, catalogFileName)
}

func (c *Catalog) newLibrary(name string) *Library {
	now := time.Now()
	return &Library{
		Name:     name,
		DBPath:   filepath.Join(c.dataDir, librariesDir, name),
		Created:  now,
		LastUsed: now,
		Enabled:  true,
	}
}

// List returns copies of all libraries, default first, then by name.
func (c *Catalog) List() []Library {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Library, 0, len(c.libraries))
	for _, lib := range c.libraries {
		out = append(out, clone(lib))
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].Name == DefaultLibrary) != (out[j].Name == DefaultLibrary) {
			return out[i].Name == DefaultLibrary
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Get returns a copy of the named library.
func (c *Catalog) Get(name string) (Library, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lib, ok := c.libraries[name]
	if !ok {
		return Library{}, unknown(name)
	}
	return clone(lib), nil
}

// Add creates a library. dbPath may be empty to use the data directory.
func (c *Catalog) Add(name, dbPath string) (Library, error) {
	if err := ValidateName(name); err != nil {
		return Library{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.libraries[name]; ok {
		return Library{}, docerrors.New(docerrors.ErrCodeInvalidInput,
			fmt.Sprintf("library '%s' already exists", name), nil)
	}

	lib := c.newLibrary(name)
	if dbPath != "" {
		abs, err := filepath.Abs(dbPath)
		if err != nil {
			return Library{}, docerrors.New(docerrors.ErrCodeInvalidPath, "invalid path "+dbPath, err)
		}
		lib.DBPath = abs
	}
	c.libraries[name] = lib
	if err := c.save(); err != nil {
		delete(c.libraries, name)
		return Library{}, err
	}
	return clone(lib), nil
}

// Remove deletes a library from the catalog. Its index files are left on
// disk. The default library cannot be removed.
func (c *Catalog) Remove(name string) error {
	if name == DefaultLibrary {
		return docerrors.New(docerrors.ErrCodeInvalidInput, "the default library cannot be removed", nil)
	}
	return c.mutate(name, func(*Library) bool { return false })
}

// Enable marks a library as searchable.
func (c *Catalog) Enable(name string) error {
	return c.mutate(name, func(l *Library) bool {
		l.Enabled = true
		return true
	})
}

// Disable excludes a library from searches.
func (c *Catalog) Disable(name string) error {
	return c.mutate(name, func(l *Library) bool {
		l.Enabled = false
		return true
	})
}

// Touch updates LastUsed.
func (c *Catalog) Touch(name string) error {
	return c.mutate(name, func(l *Library) bool {
		l.LastUsed = time.Now()
		return true
	})
}

// SetRoots records the directories a library indexes.
func (c *Catalog) SetRoots(name string, roots []string) error {
	return c.mutate(name, func(l *Library) bool {
		l.Roots = append([]string(nil), roots...)
		return true
	})
}

// UpdateStats records document count and size after an index pass.
func (c *Catalog) UpdateStats(name string, docs int, size int64) error {
	return c.mutate(name, func(l *Library) bool {
		l.DocCount = docs
		l.SizeBytes = size
		l.LastUsed = time.Now()
		return true
	})
}

// mutate applies fn to the named library and saves. fn returning false
// removes the library.
func (c *Catalog) mutate(name string, fn func(*Library) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lib, ok := c.libraries[name]
	if !ok {
		return unknown(name)
	}
	before := clone(lib)
	if !fn(lib) {
		delete(c.libraries, name)
	}
	if err := c.save(); err != nil {
		c.libraries[name] = &before
		return err
	}
	return nil
}

// save writes the catalog atomically: temp file, then rename.
func (c *Catalog) save() error {
	f := catalogFile{Libraries: make([]*Library, 0, len(c.libraries))}
	for _, lib := range c.libraries {
		f.Libraries = append(f.Libraries, lib)
	}
	sort.Slice(f.Libraries, func(i, j int) bool { return f.Libraries[i].Name < f.Libraries[j].Name })

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", catalogFileName, err)
	}

	tmp := c.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", catalogFileName, err)
	}
	if err := os.Rename(tmp, c.path()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save %s: %w", catalogFileName, err)
	}
	return nil
}

func clone(l *Library) Library {
	out := *l
	out.Roots = append([]string(nil), l.Roots...)
	return out
}

func unknown(name string) error {
	return docerrors.New(docerrors.ErrCodeUnknownLibrary, fmt.Sprintf("library '%s' not found", name), nil).
		WithSuggestion("run 'docindex library list' to see available libraries")
}
