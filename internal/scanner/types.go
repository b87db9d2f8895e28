// Package scanner discovers indexable files under root directories.
// It applies the exclusion rules (extensions, path fragments, symbolic links,
// empty files, the size ceiling, parser support) so that filtered paths never
// reach the index engine.
package scanner

import (
	"time"
)

// FileInfo describes one discovered file.
type FileInfo struct {
	Path    string    // Absolute path
	Root    string    // Root directory the file was found under
	Size    int64     // File size in bytes
	ModTime time.Time // Last modification time
}

// Options configures the scanner.
type Options struct {
	// ExcludedExtensions drops files by extension, case-insensitively.
	// Entries may be given with or without the leading dot.
	ExcludedExtensions []string

	// ExcludedPaths drops any file or directory whose path contains one of
	// the fragments, case-insensitively.
	ExcludedPaths []string

	// MaxFileSize is the size ceiling in bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64

	// Supports reports whether some parser handles the path. Nil accepts all.
	Supports func(path string) bool
}

// ScanResult is sent on the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the default size ceiling (100MB).
const DefaultMaxFileSize = 100 * 1024 * 1024

// hashBlockSize is the read size used when hashing file contents.
const hashBlockSize = 4096
