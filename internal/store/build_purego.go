//go:build !cgo_sqlite

package store

// This file is compiled by default. It uses a pure Go SQLite implementation;
// no C compiler is required and cross-compilation works out of the box.
//
// Build command:
//   go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
