package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// Scanner discovers indexable files.
type Scanner struct {
	excludedExts  map[string]bool
	excludedPaths []string
	maxFileSize   int64
	supports      func(path string) bool
	logger        *slog.Logger
}

// New creates a Scanner from opts.
func New(opts Options) *Scanner {
	exts := make(map[string]bool, len(opts.ExcludedExtensions))
	for _, e := range opts.ExcludedExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	paths := make([]string, 0, len(opts.ExcludedPaths))
	for _, p := range opts.ExcludedPaths {
		if p = strings.ToLower(p); p != "" {
			paths = append(paths, p)
		}
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	return &Scanner{
		excludedExts:  exts,
		excludedPaths: paths,
		maxFileSize:   maxSize,
		supports:      opts.Supports,
		logger:        slog.Default(),
	}
}

// WithLogger sets the logger used for skipped-entry diagnostics.
func (s *Scanner) WithLogger(logger *slog.Logger) *Scanner {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Scan walks root and streams every file that passes the exclusion rules.
// The channel is closed when the walk ends. An unreachable root is reported
// synchronously as ERR_211_ROOT_UNREACHABLE.
func (s *Scanner) Scan(ctx context.Context, root string) (<-chan ScanResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeRootUnreachable,
			"root directory is not reachable: "+absRoot, err).WithDetail("root", absRoot)
	}
	if !info.IsDir() {
		return nil, docerrors.New(docerrors.ErrCodeRootUnreachable,
			"root path is not a directory: "+absRoot, nil).WithDetail("root", absRoot)
	}

	results := make(chan ScanResult, 64)

	go func() {
		defer close(results)
		s.walk(ctx, absRoot, results)
	}()

	return results, nil
}

// ScanAll collects the files under every root. Roots that cannot be walked
// are returned in unreachable rather than failing the scan.
func (s *Scanner) ScanAll(ctx context.Context, roots []string) (files []*FileInfo, unreachable []string, err error) {
	for _, root := range roots {
		ch, scanErr := s.Scan(ctx, root)
		if scanErr != nil {
			s.logger.Warn("root_unreachable",
				slog.String("root", root),
				slog.String("error", scanErr.Error()))
			unreachable = append(unreachable, root)
			continue
		}
		for res := range ch {
			if res.Error != nil {
				return nil, nil, res.Error
			}
			files = append(files, res.File)
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
	}
	return files, unreachable, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			// Unreadable directory entries are skipped, not fatal.
			s.logger.Debug("scan_entry_skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != absRoot && s.pathExcluded(path+string(filepath.Separator)) {
				return filepath.SkipDir
			}
			return nil
		}

		info, ok := s.accept(path, d)
		if !ok {
			return nil
		}

		fi := &FileInfo{
			Path:    path,
			Root:    absRoot,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}

		select {
		case results <- ScanResult{File: fi}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// accept applies the file-level exclusion rules.
func (s *Scanner) accept(path string, d fs.DirEntry) (fs.FileInfo, bool) {
	if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
		return nil, false
	}
	if s.excludedExts[strings.ToLower(filepath.Ext(path))] {
		return nil, false
	}
	if s.pathExcluded(path) {
		return nil, false
	}

	info, err := d.Info()
	if err != nil {
		return nil, false
	}
	if info.Size() == 0 || info.Size() > s.maxFileSize {
		return nil, false
	}

	if s.supports != nil && !s.supports(path) {
		return nil, false
	}
	return info, true
}

// Accepts reports whether a single path would be returned by a scan. Used
// by the watcher to ignore events for filtered files.
func (s *Scanner) Accepts(path string) bool {
	info, err := os.Lstat(path)
	if err != nil || info.IsDir() {
		return false
	}
	_, ok := s.accept(path, fs.FileInfoToDirEntry(info))
	return ok
}

func (s *Scanner) pathExcluded(path string) bool {
	lower := strings.ToLower(path)
	for _, frag := range s.excludedPaths {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// HashFile returns the hex sha256 of the file contents, read in 4KB blocks.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, hashBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
