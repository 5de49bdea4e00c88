// Package manager creates, looks up, and restores untitled working copies.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/starford/scratch/internal/apperr"
	"github.com/starford/scratch/internal/backup"
	"github.com/starford/scratch/internal/registry"
	"github.com/starford/scratch/internal/resource"
	"github.com/starford/scratch/internal/textmodel"
	"github.com/starford/scratch/internal/workingcopy"
)

// DefaultTypeID is used when CreateOptions.TypeID is empty.
const DefaultTypeID workingcopy.TypeID = "text"

const namePrefix = "Untitled-"

// Event kinds passed to EventCallback.
const (
	EventCreated  = "created"
	EventDirty    = "dirty"
	EventClean    = "clean"
	EventContent  = "content"
	EventReverted = "reverted"
	EventDisposed = "disposed"
)

// EventCallback is called for lifecycle changes of managed copies.
type EventCallback func(kind string, wc *workingcopy.Untitled)

// Option is a functional option for New.
type Option func(*Manager)

// WithBackups enables restoring from store and tracking dirty copies into it
// after delay.
func WithBackups(store backup.Store, delay time.Duration) Option {
	return func(m *Manager) {
		m.backups = store
		m.backupDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithEventCallback sets the lifecycle callback.
func WithEventCallback(cb EventCallback) Option {
	return func(m *Manager) {
		m.cb = cb
	}
}

// CreateOptions configures Manager.Create.
type CreateOptions struct {
	TypeID workingcopy.TypeID
	// AssociatedPath binds the copy to a vault-relative save target.
	AssociatedPath string
	// InitialValue is used on first resolve when no backup exists.
	InitialValue io.Reader
	// Resolve attaches the content model before returning.
	Resolve bool
}

// Manager owns the set of untitled copies for one process.
type Manager struct {
	factory     workingcopy.ModelFactory
	backups     backup.Store
	backupDelay time.Duration
	tracker     *backup.Tracker
	logger      *slog.Logger
	cb          EventCallback

	reg *registry.Registry

	// mu serializes name allocation with registration.
	mu sync.Mutex
}

// New creates a manager whose copies use factory for their content models.
func New(factory workingcopy.ModelFactory, opts ...Option) *Manager {
	m := &Manager{
		factory: factory,
		reg:     registry.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.backups != nil {
		m.tracker = backup.NewTracker(m.backups, m.backupDelay, m.logger)
		m.reg.OnRegister(m.tracker.Track)
	}
	m.reg.OnRegister(m.observe)
	return m
}

// Key returns the handle used to address wc: its associated path when it
// has one, otherwise its untitled name.
func Key(wc *workingcopy.Untitled) string {
	if p := wc.Resource().AssociatedPath(); p != "" {
		return p
	}
	return wc.Resource().Name()
}

// Create makes a new copy. Without an associated path it is named after the
// lowest free "Untitled-N". Names and paths that still have a backup are not
// reused, so a new copy never resolves another copy's stored content.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*workingcopy.Untitled, error) {
	typeID := opts.TypeID
	if typeID == "" {
		typeID = DefaultTypeID
	}

	m.mu.Lock()
	var res resource.URI
	if opts.AssociatedPath != "" {
		res = resource.ForPath(opts.AssociatedPath)
		taken, err := m.taken(ctx, res)
		if err != nil || taken {
			m.mu.Unlock()
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("manager: %s: %w", res, apperr.ErrAlreadyExists)
		}
	} else {
		var err error
		if res, err = m.nextUntitled(ctx); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}

	wcOpts := m.copyOptions(opts.AssociatedPath != "")
	if opts.InitialValue != nil {
		wcOpts = append(wcOpts, workingcopy.WithInitialValue(opts.InitialValue))
	}
	wc, err := workingcopy.New(typeID, res, "", wcOpts...)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("manager: create: %w", err)
	}

	m.logger.Info("manager: created",
		slog.String("resource", res.String()),
		slog.Bool("associated", opts.AssociatedPath != ""))

	if opts.Resolve {
		if err := wc.Resolve(ctx); err != nil {
			wc.Dispose()
			return nil, fmt.Errorf("manager: resolve new copy: %w", err)
		}
	}
	return wc, nil
}

// nextUntitled returns the lowest "Untitled-N" that is neither live nor held
// by a stored backup. Callers hold mu.
func (m *Manager) nextUntitled(ctx context.Context) (resource.URI, error) {
	for n := 1; ; n++ {
		res := resource.Untitled(namePrefix + strconv.Itoa(n))
		taken, err := m.taken(ctx, res)
		if err != nil {
			return resource.URI{}, err
		}
		if !taken {
			return res, nil
		}
	}
}

// taken reports whether res is live or still has a backup from a copy that
// was disposed while dirty. A dirty copy writes its backup before it leaves
// the registry, so the registry must be checked first.
func (m *Manager) taken(ctx context.Context, res resource.URI) (bool, error) {
	if _, ok := m.reg.Get(res); ok {
		return true, nil
	}
	if m.backups == nil {
		return false, nil
	}
	ids, err := m.backups.List(ctx)
	if err != nil {
		return false, fmt.Errorf("manager: list backups: %w", err)
	}
	for _, id := range ids {
		if id.Resource.String() == res.String() {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) copyOptions(associated bool) []workingcopy.Option {
	opts := []workingcopy.Option{
		workingcopy.WithModelFactory(m.factory),
		workingcopy.WithRegistry(m.reg),
		workingcopy.WithLogger(m.logger),
		workingcopy.WithAssociatedFilePath(associated),
	}
	if m.backups != nil {
		opts = append(opts, workingcopy.WithBackups(m.backups))
	}
	return opts
}

// Restore brings back every backed-up copy that is not live yet and returns
// how many were restored.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.backups == nil {
		return 0, nil
	}
	ids, err := m.backups.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("manager: list backups: %w", err)
	}

	var errs []error
	restored := 0
	for _, id := range ids {
		if !id.Resource.IsUntitled() {
			continue
		}

		m.mu.Lock()
		if _, live := m.reg.Get(id.Resource); live {
			m.mu.Unlock()
			continue
		}
		wc, err := workingcopy.New(id.TypeID, id.Resource, "", m.copyOptions(id.Resource.AssociatedPath() != "")...)
		m.mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := wc.Resolve(ctx); err != nil {
			m.logger.Warn("manager: restore failed",
				slog.String("resource", id.Resource.String()),
				slog.String("error", err.Error()))
			wc.Dispose()
			errs = append(errs, err)
			continue
		}
		restored++
		m.logger.Info("manager: restored", slog.String("resource", id.Resource.String()))
	}
	return restored, errors.Join(errs...)
}

// Get returns the live copy addressed by key (see Key).
func (m *Manager) Get(key string) (*workingcopy.Untitled, error) {
	if wc, ok := m.reg.Get(resource.Untitled(key)); ok {
		return wc, nil
	}
	if wc, ok := m.reg.Get(resource.ForPath(key)); ok {
		return wc, nil
	}
	return nil, fmt.Errorf("manager: %q: %w", key, apperr.ErrNotFound)
}

// List returns all live copies.
func (m *Manager) List() []*workingcopy.Untitled {
	return m.reg.List()
}

// Len returns the number of live copies.
func (m *Manager) Len() int {
	return m.reg.Len()
}

// TextModel resolves wc if needed and returns its text model.
func (m *Manager) TextModel(ctx context.Context, wc *workingcopy.Untitled) (*textmodel.Model, error) {
	if err := wc.Resolve(ctx); err != nil {
		return nil, err
	}
	tm, ok := textmodel.From(wc.Model())
	if !ok {
		if wc.IsDisposed() {
			return nil, fmt.Errorf("manager: %s: %w", wc.Resource(), apperr.ErrDisposed)
		}
		return nil, fmt.Errorf("manager: %s has no text model", wc.Resource())
	}
	return tm, nil
}

// Close disposes every live copy. Dirty copies keep their backups.
func (m *Manager) Close() {
	for _, wc := range m.reg.List() {
		wc.Dispose()
	}
	if m.tracker != nil {
		m.tracker.Close()
	}
}

func (m *Manager) observe(wc *workingcopy.Untitled) {
	if m.cb == nil {
		return
	}
	cb := m.cb
	wc.OnDidChangeDirty(func() {
		if wc.IsDirty() {
			cb(EventDirty, wc)
		} else {
			cb(EventClean, wc)
		}
	})
	wc.OnDidChangeContent(func() { cb(EventContent, wc) })
	wc.OnDidRevert(func() { cb(EventReverted, wc) })
	wc.OnWillDispose(func() { cb(EventDisposed, wc) })
	cb(EventCreated, wc)
}
