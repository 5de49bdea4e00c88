// Package testutil provides shared test helpers for setting up vaults,
// backup stores, and managers.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/scratch/internal/backup"
	"github.com/starford/scratch/internal/manager"
	"github.com/starford/scratch/internal/storage"
	"github.com/starford/scratch/internal/textmodel"
)

// QuietLogger logs errors only, to stderr.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestBackups opens a temporary backup store for driver that is closed on
// cleanup.
func TestBackups(t *testing.T, driver string) backup.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backups")
	if driver == backup.DriverSQLite {
		path += ".db"
	}
	store, err := backup.Open(driver, path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestManager creates a manager backed by a temporary file-system backup
// store. Extra options are applied after the defaults.
func TestManager(t *testing.T, opts ...manager.Option) *manager.Manager {
	t.Helper()
	all := append([]manager.Option{
		manager.WithLogger(QuietLogger()),
		manager.WithBackups(TestBackups(t, backup.DriverFS), time.Hour),
	}, opts...)
	m := manager.New(textmodel.NewFactory(1<<20), all...)
	t.Cleanup(m.Close)
	return m
}
