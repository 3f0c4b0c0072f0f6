//go:build !sqlite_cgo

package storage

// Default build. Pure Go SQLite, no C toolchain required.
// Uses modernc.org/sqlite.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
