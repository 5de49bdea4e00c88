package workingcopy

import (
	"io"
	"log/slog"
)

// Option is a functional option for New.
type Option func(*Untitled)

// WithAssociatedFilePath marks the copy as pre-bound to a save target.
func WithAssociatedFilePath(associated bool) Option {
	return func(w *Untitled) {
		w.hasAssociatedFilePath = associated
	}
}

// WithInitialValue sets content used on first resolve when no backup exists.
func WithInitialValue(r io.Reader) Option {
	return func(w *Untitled) {
		w.initialValue = r
	}
}

// WithModelFactory sets the factory that creates the content model.
func WithModelFactory(f ModelFactory) Option {
	return func(w *Untitled) {
		w.factory = f
	}
}

// WithBackups sets where resolve looks for a previous backup.
func WithBackups(b BackupResolver) Option {
	return func(w *Untitled) {
		w.backups = b
	}
}

// WithRegistry sets the registry the copy joins on construction.
func WithRegistry(r Registry) Option {
	return func(w *Untitled) {
		w.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Untitled) {
		w.logger = l
	}
}
