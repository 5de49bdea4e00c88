// Package saveas writes untitled drafts into the vault and then hands the
// working copy over to its save protocol.
package saveas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/scratch/internal/apperr"
	"github.com/starford/scratch/internal/checksum"
	"github.com/starford/scratch/internal/parser"
	"github.com/starford/scratch/internal/storage"
	"github.com/starford/scratch/internal/workingcopy"
)

// DefaultExt is appended to targets without an extension.
const DefaultExt = ".md"

// ErrNoTarget is returned when neither the options nor the copy name a path.
var ErrNoTarget = errors.New("saveas: target path is required")

// Options configures SaveAs.
type Options struct {
	// Path is the vault-relative target. Empty means the associated path.
	Path      string
	Overwrite bool
	Reason    workingcopy.SaveReason
}

// Result describes the written file.
type Result struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Bytes    int    `json:"bytes"`
}

// Saver saves working copies into a vault.
type Saver struct {
	vault  storage.Provider
	logger *slog.Logger
}

// New creates a Saver writing into vault.
func New(vault storage.Provider, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saver{vault: vault, logger: logger}
}

// Target returns the path SaveAs would write for wc with opts.
func Target(wc *workingcopy.Untitled, opts Options) (string, error) {
	target := strings.TrimSpace(opts.Path)
	if target == "" {
		target = wc.Resource().AssociatedPath()
	}
	if target == "" {
		return "", ErrNoTarget
	}
	target = strings.TrimPrefix(path.Clean("/"+target), "/")
	if path.Ext(target) == "" {
		target += DefaultExt
	}
	return target, nil
}

// SaveAs captures the content of wc, writes it to the vault, and then saves
// wc, which discards the untitled copy.
func (s *Saver) SaveAs(ctx context.Context, wc *workingcopy.Untitled, opts Options) (*Result, error) {
	target, err := Target(wc, opts)
	if err != nil {
		return nil, err
	}

	if err := wc.Resolve(ctx); err != nil {
		return nil, fmt.Errorf("saveas: resolve: %w", err)
	}

	snapshot, err := wc.Backup(ctx)
	if err != nil {
		return nil, fmt.Errorf("saveas: snapshot: %w", err)
	}
	if snapshot.Content == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("saveas: %s: %w", wc.Resource(), apperr.ErrDisposed)
	}

	data, sum, err := checksum.ReadAll(snapshot.Content)
	if err != nil {
		return nil, fmt.Errorf("saveas: %w", err)
	}
	if err := parser.Validate(data); err != nil {
		return nil, fmt.Errorf("saveas: %w", err)
	}

	exists, err := s.vault.Exists(target)
	if err != nil {
		return nil, fmt.Errorf("saveas: %w", err)
	}
	if exists && !opts.Overwrite {
		return nil, fmt.Errorf("saveas: %s: %w", target, apperr.ErrAlreadyExists)
	}

	if err := s.vault.Write(target, data); err != nil {
		return nil, fmt.Errorf("saveas: %w", err)
	}

	if _, err := wc.Save(ctx, workingcopy.SaveOptions{Reason: opts.Reason}); err != nil {
		return nil, fmt.Errorf("saveas: hand over %s: %w", wc.Resource(), err)
	}

	s.logger.Info("saveas: saved",
		slog.String("resource", wc.Resource().String()),
		slog.String("path", target))

	return &Result{Path: target, Checksum: sum, Bytes: len(data)}, nil
}
