package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

func TestLoadCatalog_CreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cat, err := LoadCatalog(dir)

	require.NoError(t, err)
	libs := cat.List()
	require.Len(t, libs, 1)
	assert.Equal(t, DefaultLibrary, libs[0].Name)
	assert.True(t, libs[0].Enabled)
	assert.Equal(t, filepath.Join(dir, "libraries", DefaultLibrary), libs[0].DBPath)
	assert.FileExists(t, filepath.Join(dir, "libraries.yaml"))
}

func TestCatalog_Lifecycle(t *testing.T) {
	// Given: a catalog with two extra libraries
	dir := t.TempDir()
	cat, err := LoadCatalog(dir)
	require.NoError(t, err)

	_, err = cat.Add("work", "")
	require.NoError(t, err)
	custom := filepath.Join(t.TempDir(), "archive")
	lib, err := cat.Add("archive", custom)
	require.NoError(t, err)
	assert.Equal(t, custom, lib.DBPath)

	// When: they are disabled, updated and removed
	require.NoError(t, cat.Disable("work"))
	require.NoError(t, cat.SetRoots("work", []string{"/docs"}))
	require.NoError(t, cat.UpdateStats("work", 42, 4096))
	require.NoError(t, cat.Remove("archive"))

	// Then: the state survives a reload
	reloaded, err := LoadCatalog(dir)
	require.NoError(t, err)

	names := []string{}
	for _, l := range reloaded.List() {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{DefaultLibrary, "work"}, names)

	work, err := reloaded.Get("work")
	require.NoError(t, err)
	assert.False(t, work.Enabled)
	assert.Equal(t, []string{"/docs"}, work.Roots)
	assert.Equal(t, 42, work.DocCount)
	assert.Equal(t, int64(4096), work.SizeBytes)

	require.NoError(t, reloaded.Enable("work"))
	work, _ = reloaded.Get("work")
	assert.True(t, work.Enabled)
}

func TestCatalog_Errors(t *testing.T) {
	cat, err := LoadCatalog(t.TempDir())
	require.NoError(t, err)
	_, err = cat.Add("dup", "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		op       func() error
		wantCode string
	}{
		{"remove default", func() error { return cat.Remove(DefaultLibrary) }, docerrors.ErrCodeInvalidInput},
		{"duplicate", func() error { _, err := cat.Add("dup", ""); return err }, docerrors.ErrCodeInvalidInput},
		{"bad name", func() error { _, err := cat.Add("no spaces", ""); return err }, docerrors.ErrCodeInvalidInput},
		{"empty name", func() error { _, err := cat.Add("", ""); return err }, docerrors.ErrCodeInvalidInput},
		{"unknown get", func() error { _, err := cat.Get("nope"); return err }, docerrors.ErrCodeUnknownLibrary},
		{"unknown enable", func() error { return cat.Enable("nope") }, docerrors.ErrCodeUnknownLibrary},
		{"unknown remove", func() error { return cat.Remove("nope") }, docerrors.ErrCodeUnknownLibrary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, docerrors.GetCode(err))
		})
	}
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	cat, err := LoadCatalog(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cat.SetRoots(DefaultLibrary, []string{"/a"}))

	lib, err := cat.Get(DefaultLibrary)
	require.NoError(t, err)
	lib.Roots[0] = "/mutated"
	lib.Enabled = false

	again, _ := cat.Get(DefaultLibrary)
	assert.Equal(t, []string{"/a"}, again.Roots)
	assert.True(t, again.Enabled)
}

func TestLoadCatalog_RejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "libraries.yaml"), []byte("libraries: [::"), 0o644))

	_, err := LoadCatalog(dir)

	assert.Equal(t, docerrors.ErrCodeConfigInvalid, docerrors.GetCode(err))
}

func TestLoadCatalog_RequiresDir(t *testing.T) {
	_, err := LoadCatalog("")
	assert.Error(t, err)
}
