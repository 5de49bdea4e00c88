// Package workingcopy implements the lifecycle of untitled working copies:
// in-memory documents that have no file until the user saves them.
package workingcopy

import (
	"context"
	"io"

	"github.com/starford/scratch/internal/resource"
)

// TypeID names the kind of content model a working copy uses.
type TypeID string

// Identifier is the identity of a working copy as seen by the backup store.
type Identifier struct {
	TypeID   TypeID
	Resource resource.URI
}

func (id Identifier) String() string {
	return string(id.TypeID) + "|" + id.Resource.String()
}

// ContentChangedEvent is emitted by a content model once an edit has been
// fully applied.
type ContentChangedEvent struct {
	IsEmpty bool
	Version int
}

// ContentModel holds the document content of a resolved working copy.
type ContentModel interface {
	// OnDidChangeContent registers fn for content changes.
	OnDidChangeContent(fn func(ContentChangedEvent)) (unsubscribe func())
	// OnWillDispose registers fn for disposal requests raised by the model.
	OnWillDispose(fn func()) (unsubscribe func())
	// Snapshot returns the current content. It honours ctx cancellation.
	Snapshot(ctx context.Context) (io.Reader, error)
	Dispose()
}

// ModelFactory creates content models from an initial content stream.
type ModelFactory interface {
	CreateModel(ctx context.Context, res resource.URI, content io.Reader) (ContentModel, error)
}

// Backup is previously stored working copy content.
type Backup struct {
	Value io.Reader
}

// BackupResolver looks up stored backups. Resolve returns nil, nil when no
// backup exists.
type BackupResolver interface {
	Resolve(ctx context.Context, id Identifier) (*Backup, error)
}

// Registry tracks live working copies. It holds membership only and never
// disposes what it tracks.
type Registry interface {
	Register(wc *Untitled) (unregister func())
}

// BackupContent is the payload produced by Untitled.Backup. Content is nil
// when there is nothing to back up or the snapshot was cancelled.
type BackupContent struct {
	Content io.Reader
}

// SaveReason describes what triggered a save.
type SaveReason int

const (
	SaveReasonExplicit SaveReason = iota
	SaveReasonAuto
	SaveReasonFocusChange
	SaveReasonWindowChange
)

func (r SaveReason) String() string {
	switch r {
	case SaveReasonExplicit:
		return "explicit"
	case SaveReasonAuto:
		return "auto"
	case SaveReasonFocusChange:
		return "focus_change"
	case SaveReasonWindowChange:
		return "window_change"
	default:
		return "unknown"
	}
}

// SaveOptions configures Untitled.Save.
type SaveOptions struct {
	Reason SaveReason
}
