package workingcopy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/scratch/internal/apperr"
	"github.com/starford/scratch/internal/event"
	"github.com/starford/scratch/internal/resource"
)

const resolveKey = "resolve"

// Untitled is a working copy without a backing file.
//
// Lifecycle: Unresolved -> Resolved -> Disposed. Resolve attaches a content
// model exactly once; Revert and Dispose are terminal. Copy state is guarded
// by mu and listeners are always notified with mu released.
type Untitled struct {
	typeID                TypeID
	resource              resource.URI
	name                  string
	hasAssociatedFilePath bool

	factory  ModelFactory
	backups  BackupResolver
	registry Registry
	logger   *slog.Logger

	resolving singleflight.Group

	mu             sync.Mutex
	initialValue   io.Reader
	initialBytes   []byte
	hasInitial     bool
	model          ContentModel
	modelListeners []func()
	dirty          bool
	reverting      bool
	disposed       bool
	unregister     func()

	onDidChangeContent event.Signal
	onDidChangeDirty   event.Signal
	onDidRevert        event.Signal
	onWillDispose      event.Signal
}

// New creates an untitled working copy and registers it.
// It fails with apperr.ErrNotUntitled when res is outside the untitled scheme.
func New(typeID TypeID, res resource.URI, name string, opts ...Option) (*Untitled, error) {
	if !res.IsUntitled() {
		return nil, fmt.Errorf("workingcopy: %s: %w", res, apperr.ErrNotUntitled)
	}

	w := &Untitled{
		typeID:   typeID,
		resource: res,
		name:     name,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.factory == nil {
		return nil, errors.New("workingcopy: model factory is required")
	}
	if w.name == "" {
		w.name = res.Name()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	w.hasInitial = w.initialValue != nil
	w.dirty = w.hasAssociatedFilePath || w.hasInitial

	if w.registry != nil {
		w.unregister = w.registry.Register(w)
	}

	return w, nil
}

// TypeID returns the content model category.
func (w *Untitled) TypeID() TypeID { return w.typeID }

// Resource returns the working copy identity.
func (w *Untitled) Resource() resource.URI { return w.resource }

// Name returns the display label.
func (w *Untitled) Name() string { return w.name }

// HasAssociatedFilePath reports whether the copy is pre-bound to a save target.
func (w *Untitled) HasAssociatedFilePath() bool { return w.hasAssociatedFilePath }

// Identifier returns the backup identity of the copy.
func (w *Untitled) Identifier() Identifier {
	return Identifier{TypeID: w.typeID, Resource: w.resource}
}

// IsDirty reports whether the copy holds content that needs saving.
func (w *Untitled) IsDirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// IsResolved reports whether a content model is attached.
func (w *Untitled) IsResolved() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.model != nil
}

// IsDisposed reports whether the copy reached its terminal state.
func (w *Untitled) IsDisposed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disposed
}

// Model returns the attached content model, or nil while unresolved.
func (w *Untitled) Model() ContentModel {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.model
}

// OnDidChangeContent registers fn for content changes.
func (w *Untitled) OnDidChangeContent(fn func()) func() { return w.onDidChangeContent.On(fn) }

// OnDidChangeDirty registers fn for dirty flag changes.
func (w *Untitled) OnDidChangeDirty(fn func()) func() { return w.onDidChangeDirty.On(fn) }

// OnDidRevert registers fn for reverts.
func (w *Untitled) OnDidRevert(fn func()) func() { return w.onDidRevert.On(fn) }

// OnWillDispose registers fn to run before owned resources are released.
func (w *Untitled) OnWillDispose(fn func()) func() { return w.onWillDispose.On(fn) }

// Resolve materializes the content and attaches the content model.
//
// Content comes from the stored backup if there is one, else from the initial
// value, else it is empty. Concurrent first calls share one resolution, and
// once resolved further calls return immediately. The shared work is not
// cancelled with ctx. A model factory failure leaves the copy unresolved so the
// caller may retry.
func (w *Untitled) Resolve(ctx context.Context) error {
	w.mu.Lock()
	resolved, disposed := w.model != nil, w.disposed
	w.mu.Unlock()

	if disposed {
		return fmt.Errorf("workingcopy: resolve %s: %w", w.resource, apperr.ErrDisposed)
	}
	if resolved {
		return nil
	}

	workCtx := context.WithoutCancel(ctx)
	_, err, _ := w.resolving.Do(resolveKey, func() (any, error) {
		return nil, w.doResolve(workCtx)
	})
	return err
}

func (w *Untitled) doResolve(ctx context.Context) error {
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return fmt.Errorf("workingcopy: resolve %s: %w", w.resource, apperr.ErrDisposed)
	}
	if w.model != nil {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	var content io.Reader
	usedBackup := false

	if backup := w.resolveBackup(ctx); backup != nil {
		content = backup.Value
		usedBackup = true
	}

	if content == nil {
		initial, err := w.initialContent()
		if err != nil {
			return err
		}
		if initial != nil {
			content = bytes.NewReader(initial)
		} else {
			content = bytes.NewReader(nil)
		}
	}

	model, err := w.factory.CreateModel(ctx, w.resource, content)
	if err != nil {
		return fmt.Errorf("workingcopy: create model for %s: %w", w.resource, err)
	}

	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		model.Dispose()
		return fmt.Errorf("workingcopy: resolve %s: %w", w.resource, apperr.ErrDisposed)
	}
	w.model = model
	w.initialValue = nil
	w.initialBytes = nil
	w.modelListeners = []func(){
		model.OnDidChangeContent(w.handleModelContentChange),
		model.OnWillDispose(w.Dispose),
	}
	hadInitial := w.hasInitial
	w.mu.Unlock()

	w.setDirty(w.hasAssociatedFilePath || usedBackup || hadInitial)

	if usedBackup || hadInitial {
		w.onDidChangeContent.Notify()
	}

	w.logger.Debug("workingcopy: resolved",
		slog.String("resource", w.resource.String()),
		slog.Bool("from_backup", usedBackup),
		slog.Bool("from_initial_value", hadInitial && !usedBackup))

	return nil
}

// resolveBackup returns the stored backup, if any. Lookup failures are logged
// and treated as a missing backup.
func (w *Untitled) resolveBackup(ctx context.Context) *Backup {
	if w.backups == nil {
		return nil
	}
	backup, err := w.backups.Resolve(ctx, w.Identifier())
	if err != nil {
		w.logger.Warn("workingcopy: backup lookup failed",
			slog.String("resource", w.resource.String()),
			slog.String("error", err.Error()))
		return nil
	}
	if backup == nil || backup.Value == nil {
		return nil
	}
	return backup
}

// initialContent drains the initial value stream once and keeps the bytes
// until a model is attached, so a failed resolve can be retried.
func (w *Untitled) initialContent() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialBytes != nil || w.initialValue == nil {
		return w.initialBytes, nil
	}
	data, err := io.ReadAll(w.initialValue)
	if err != nil {
		return nil, fmt.Errorf("workingcopy: read initial value of %s: %w", w.resource, err)
	}
	if data == nil {
		data = []byte{}
	}
	w.initialBytes = data
	w.initialValue = nil
	return data, nil
}

func (w *Untitled) handleModelContentChange(e ContentChangedEvent) {
	// An empty document that has no save target never needs saving.
	if e.IsEmpty && !w.hasAssociatedFilePath {
		w.setDirty(false)
	} else {
		w.setDirty(true)
	}
	w.onDidChangeContent.Notify()
}

func (w *Untitled) setDirty(dirty bool) {
	w.mu.Lock()
	if w.dirty == dirty {
		w.mu.Unlock()
		return
	}
	w.dirty = dirty
	w.mu.Unlock()

	w.onDidChangeDirty.Notify()
}

// Backup returns the current content for external persistence. The payload is
// empty while unresolved, and also when ctx is cancelled before the snapshot
// completes.
func (w *Untitled) Backup(ctx context.Context) (BackupContent, error) {
	model := w.Model()
	if model == nil {
		return BackupContent{}, nil
	}

	snapshot, err := model.Snapshot(ctx)
	if ctx.Err() != nil {
		return BackupContent{}, nil
	}
	if err != nil {
		return BackupContent{}, fmt.Errorf("workingcopy: snapshot %s: %w", w.resource, err)
	}
	return BackupContent{Content: snapshot}, nil
}

// Save hands the copy over after an external save flow has captured its
// content. An untitled copy has no target of its own, so saving discards it
// through Revert.
func (w *Untitled) Save(ctx context.Context, opts SaveOptions) (bool, error) {
	w.logger.Debug("workingcopy: save",
		slog.String("resource", w.resource.String()),
		slog.String("reason", opts.Reason.String()))

	if err := w.Revert(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Revert discards the copy: it clears the dirty flag, notifies revert
// listeners and then disposes. Only one Revert runs per copy; later or
// concurrent calls fail with apperr.ErrDisposed.
func (w *Untitled) Revert(_ context.Context) error {
	w.mu.Lock()
	if w.disposed || w.reverting {
		w.mu.Unlock()
		return fmt.Errorf("workingcopy: revert %s: %w", w.resource, apperr.ErrDisposed)
	}
	w.reverting = true
	w.mu.Unlock()

	w.setDirty(false)
	w.onDidRevert.Notify()
	w.Dispose()

	w.logger.Debug("workingcopy: reverted", slog.String("resource", w.resource.String()))
	return nil
}

// Dispose releases the model and leaves the registry. Only the first call has
// any effect.
func (w *Untitled) Dispose() {
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return
	}
	w.disposed = true
	w.mu.Unlock()

	w.onWillDispose.Notify()

	w.mu.Lock()
	model := w.model
	listeners := w.modelListeners
	unregister := w.unregister
	w.model = nil
	w.modelListeners = nil
	w.unregister = nil
	w.initialValue = nil
	w.initialBytes = nil
	w.mu.Unlock()

	for _, off := range listeners {
		off()
	}
	if model != nil {
		model.Dispose()
	}
	if unregister != nil {
		unregister()
	}

	w.onDidChangeContent.Dispose()
	w.onDidChangeDirty.Dispose()
	w.onDidRevert.Dispose()
	w.onWillDispose.Dispose()

	w.logger.Debug("workingcopy: disposed", slog.String("resource", w.resource.String()))
}
