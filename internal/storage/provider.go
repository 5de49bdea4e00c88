// Package storage defines the file-system abstraction used for the vault and
// for file-based backups.
package storage

import "time"

// Entry describes one stored file.
type Entry struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for file operations relative to a root directory.
type Provider interface {
	// List returns entries for every file under dir whose name ends with suffix.
	// An empty suffix matches every file.
	List(dir, suffix string) ([]Entry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Exists reports whether a file exists at path.
	Exists(path string) (bool, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
