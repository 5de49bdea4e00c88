// Package backup persists the content of untitled working copies so drafts
// survive restarts.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/starford/scratch/internal/storage"
	"github.com/starford/scratch/internal/workingcopy"
)

// Drivers.
const (
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
)

// Store persists backups keyed by working copy identity.
type Store interface {
	workingcopy.BackupResolver
	// Put stores content for id, replacing any previous backup.
	Put(ctx context.Context, id workingcopy.Identifier, content io.Reader) error
	// Discard removes the backup for id. Missing backups are not an error.
	Discard(ctx context.Context, id workingcopy.Identifier) error
	// List returns the identities of every stored backup.
	List(ctx context.Context) ([]workingcopy.Identifier, error)
	Close() error
}

// Open returns the store for driver. For DriverFS path is a directory, which
// is created when missing; for DriverSQLite it is the database file.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverFS:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("backup: create dir: %w", err)
		}
		files, err := storage.NewFS(path)
		if err != nil {
			return nil, fmt.Errorf("backup: %w", err)
		}
		return NewFS(files), nil
	case DriverSQLite:
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("backup: create dir: %w", err)
			}
		}
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("backup: unknown driver %q", driver)
	}
}
