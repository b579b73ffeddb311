package store

import (
	"path/filepath"

	"github.com/nvandessel/streamsim/internal/constants"
)

// DataDir returns the data directory for the given project root.
func DataDir(projectRoot string) string {
	return filepath.Join(projectRoot, constants.DataDirName)
}

// DefaultDatabasePath returns the SQLite database path under projectRoot.
func DefaultDatabasePath(projectRoot string) string {
	return filepath.Join(DataDir(projectRoot), constants.DatabaseFile)
}
