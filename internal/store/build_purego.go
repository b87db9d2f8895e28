//go:build !cgo_sqlite

package store

// Default build: pure Go SQLite, no C compiler required.
//
//	CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver used for SQLite files.
	DriverName = "sqlite"

	// BuildMode describes the SQLite build configuration.
	BuildMode = "purego"
)
