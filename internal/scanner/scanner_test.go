package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

func createFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, s *Scanner, root string) []string {
	t.Helper()
	ch, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	var rels []string
	for res := range ch {
		require.NoError(t, res.Error)
		rel, err := filepath.Rel(root, res.File.Path)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	sort.Strings(rels)
	return rels
}

func TestScanner_AppliesExclusions(t *testing.T) {
	// Given: a tree with files that each trip one exclusion rule
	root := t.TempDir()
	createFile(t, root, "keep.txt", "kept")
	createFile(t, root, "docs/guide.md", "kept too")
	createFile(t, root, "tool.EXE", "binary")
	createFile(t, root, "empty.txt", "")
	createFile(t, root, "big.txt", strings.Repeat("x", 64))
	createFile(t, root, ".git/config.txt", "git internals")
	createFile(t, root, "Node_Modules/pkg/readme.txt", "dependency")
	createFile(t, root, "photo.jpg", "unsupported")
	require.NoError(t, os.Symlink(filepath.Join(root, "keep.txt"), filepath.Join(root, "link.txt")))

	s := New(Options{
		ExcludedExtensions: []string{"exe", ".DLL"},
		ExcludedPaths:      []string{"/.git/", "/node_modules/"},
		MaxFileSize:        32,
		Supports: func(path string) bool {
			return !strings.HasSuffix(path, ".jpg")
		},
	})

	// When: scanning
	got := collect(t, s, root)

	// Then: only the clean files remain
	assert.Equal(t, []string{"docs/guide.md", "keep.txt"}, got)
}

func TestScanner_FileInfo(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a.txt", "hello")

	ch, err := New(Options{}).Scan(context.Background(), root)
	require.NoError(t, err)

	var files []*FileInfo
	for res := range ch {
		require.NoError(t, res.Error)
		files = append(files, res.File)
	}

	require.Len(t, files, 1)
	assert.Equal(t, int64(5), files[0].Size)
	assert.True(t, filepath.IsAbs(files[0].Path))
	assert.False(t, files[0].ModTime.IsZero())
}

func TestScanner_UnreachableRoot(t *testing.T) {
	_, err := New(Options{}).Scan(context.Background(), filepath.Join(t.TempDir(), "gone"))

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeRootUnreachable, docerrors.GetCode(err))
}

func TestScanner_ScanAllReportsUnreachable(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "one.txt", "1")
	missing := filepath.Join(root, "missing")

	files, unreachable, err := New(Options{}).ScanAll(context.Background(), []string{root, missing})

	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, []string{missing}, unreachable)
}

func TestScanner_CancelledContext(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 50; i++ {
		createFile(t, root, filepath.Join("d", strings.Repeat("f", i%5+1)+string(rune('a'+i%26))+".txt"), "x")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, err := New(Options{}).Scan(ctx, root)
	require.NoError(t, err)

	count := 0
	for range ch {
		count++
	}
	assert.Less(t, count, 50)
}

func TestScanner_Accepts(t *testing.T) {
	root := t.TempDir()
	good := createFile(t, root, "a.txt", "x")
	bad := createFile(t, root, "a.tmp", "x")
	s := New(Options{ExcludedExtensions: []string{".tmp"}})

	assert.True(t, s.Accepts(good))
	assert.False(t, s.Accepts(bad))
	assert.False(t, s.Accepts(root))
	assert.False(t, s.Accepts(filepath.Join(root, "nope.txt")))
}

func TestHashFile(t *testing.T) {
	root := t.TempDir()
	content := strings.Repeat("block", 2000)
	path := createFile(t, root, "h.txt", content)

	got, err := HashFile(path)

	require.NoError(t, err)
	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)

	_, err = HashFile(filepath.Join(root, "missing"))
	assert.Error(t, err)
}
