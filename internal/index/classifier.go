package index

import (
	"sort"

	"github.com/Aman-CERP/docindex/internal/scanner"
	"github.com/Aman-CERP/docindex/internal/store"
)

// Hasher computes the content hash of a file.
type Hasher func(path string) (string, error)

// Classify compares a fresh scan with the known active records and returns
// what changed. The content hash alone decides whether a file was modified;
// modification times are ignored. Files that cannot be hashed are reported
// in Failures and left out of the delta.
func Classify(scanned []*scanner.FileInfo, known map[string]store.KnownFile, hash Hasher) *IndexDelta {
	delta := &IndexDelta{Tasks: make(map[string]Task)}
	seen := make(map[string]bool, len(scanned))

	for _, f := range scanned {
		if seen[f.Path] {
			continue
		}
		seen[f.Path] = true

		h, err := hash(f.Path)
		if err != nil {
			delta.Failures = append(delta.Failures, FileFailure{Path: f.Path, Err: err})
			continue
		}

		prev, exists := known[f.Path]
		switch {
		case !exists:
			delta.Added = append(delta.Added, f.Path)
		case prev.ContentHash != h:
			delta.Modified = append(delta.Modified, f.Path)
		default:
			delta.Unchanged++
			continue
		}

		delta.Tasks[f.Path] = Task{Path: f.Path, ContentHash: h, Size: f.Size, ModTime: f.ModTime}
	}

	delta.Scanned = len(seen)

	for path := range known {
		if !seen[path] {
			delta.Deleted = append(delta.Deleted, path)
		}
	}

	sort.Strings(delta.Added)
	sort.Strings(delta.Modified)
	sort.Strings(delta.Deleted)
	return delta
}

// Changed returns the parse tasks for Added followed by Modified.
func (d *IndexDelta) Changed() []Task {
	tasks := make([]Task, 0, len(d.Added)+len(d.Modified))
	for _, p := range d.Added {
		tasks = append(tasks, d.Tasks[p])
	}
	for _, p := range d.Modified {
		tasks = append(tasks, d.Tasks[p])
	}
	return tasks
}

// Empty reports whether the delta has nothing to write.
func (d *IndexDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}
