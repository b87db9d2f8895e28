// Package lock provides the cross-process lock that keeps two docindex
// processes from writing the same index at once.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// FileLock is an exclusive lock on a file next to the index database.
// Works on all platforms gofrs/flock supports.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// ForIndex returns the lock guarding the index at dbPath (<dbPath>.lock).
func ForIndex(dbPath string) *FileLock {
	return New(dbPath + ".lock")
}

// New creates a lock on path. The file is created when first locked.
func New(path string) *FileLock {
	return &FileLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Lock acquires the lock, blocking until it is available.
func (l *FileLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking. Returns false if
// another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Acquire polls for the lock until it is held or wait elapses. A lock still
// held by another process after wait is reported as ERR_306_INDEX_LOCKED.
func (l *FileLock) Acquire(ctx context.Context, wait time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	acquired, err := l.flock.TryLockContext(waitCtx, 50*time.Millisecond)
	if acquired {
		l.locked = true
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && waitCtx.Err() == nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return docerrors.New(docerrors.ErrCodeIndexLocked,
		"index is being written by another process", err).
		WithDetail("lock", l.path).
		WithSuggestion("wait for the other index or refresh to finish, then retry")
}

// Unlock releases the lock. Safe to call when not locked.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// IsLocked reports whether this FileLock holds the lock.
func (l *FileLock) IsLocked() bool {
	return l.locked
}
