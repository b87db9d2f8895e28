//go:build cgo_sqlite

package store

// cgo build: mattn/go-sqlite3. FTS5 must be compiled in.
//
//	CGO_ENABLED=1 go build -tags "cgo_sqlite,sqlite_fts5" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver used for SQLite files.
	DriverName = "sqlite3"

	// BuildMode describes the SQLite build configuration.
	BuildMode = "cgo"
)
