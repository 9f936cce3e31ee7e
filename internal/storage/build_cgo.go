//go:build sqlite_vec

package storage

// Compiled with CGO and the sqlite_vec tag. Vector distances are computed
// inside SQLite by the sqlite-vec extension, and LIMIT/OFFSET pagination
// happens in SQL.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
