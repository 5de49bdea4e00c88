// Package textmodel provides the in-memory text buffer behind untitled working
// copies.
package textmodel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/starford/scratch/internal/apperr"
	"github.com/starford/scratch/internal/checksum"
	"github.com/starford/scratch/internal/event"
	"github.com/starford/scratch/internal/parser"
	"github.com/starford/scratch/internal/resource"
	"github.com/starford/scratch/internal/workingcopy"
)

// ErrTooLarge is returned when content exceeds the configured limit.
var ErrTooLarge = errors.New("textmodel: content too large")

// Model is a text buffer. Content-changed listeners run after the buffer has
// applied the edit.
type Model struct {
	resource resource.URI
	maxBytes int64

	mu       sync.RWMutex
	content  []byte
	version  int
	disposed bool

	changed     event.Emitter[workingcopy.ContentChangedEvent]
	willDispose event.Signal
}

var _ workingcopy.ContentModel = (*Model)(nil)

func newModel(res resource.URI, content []byte, maxBytes int64) *Model {
	return &Model{resource: res, content: content, maxBytes: maxBytes}
}

// From returns the text model behind a content model, if it is one.
func From(m workingcopy.ContentModel) (*Model, bool) {
	tm, ok := m.(*Model)
	return tm, ok && tm != nil
}

// Resource returns the resource the model was created for.
func (m *Model) Resource() resource.URI { return m.resource }

// Value returns the current text.
func (m *Model) Value() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return string(m.content)
}

// Len returns the content length in bytes.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content)
}

// Version increases by one with every applied edit.
func (m *Model) Version() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Title derives a display title from the current content.
func (m *Model) Title() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return parser.Title(m.content)
}

// SetValue replaces the whole text.
func (m *Model) SetValue(s string) error {
	return m.SetValueIfMatch("", s)
}

// Append adds s at the end of the text.
func (m *Model) Append(s string) error {
	return m.AppendIfMatch("", s)
}

// SetValueIfMatch replaces the text when its checksum equals sum. An empty sum
// matches any content. A mismatch fails with apperr.ErrConflict.
func (m *Model) SetValueIfMatch(sum, s string) error {
	return m.apply(sum, func(cur []byte) []byte { return []byte(s) })
}

// AppendIfMatch appends s when the text checksum equals sum. An empty sum
// matches any content.
func (m *Model) AppendIfMatch(sum, s string) error {
	return m.apply(sum, func(cur []byte) []byte {
		next := make([]byte, 0, len(cur)+len(s))
		return append(append(next, cur...), s...)
	})
}

func (m *Model) apply(ifMatch string, edit func([]byte) []byte) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return fmt.Errorf("textmodel: edit %s: %w", m.resource, apperr.ErrDisposed)
	}
	if ifMatch != "" && ifMatch != checksum.Sum(m.content) {
		m.mu.Unlock()
		return fmt.Errorf("textmodel: edit %s: %w", m.resource, apperr.ErrConflict)
	}
	next := edit(m.content)
	if m.maxBytes > 0 && int64(len(next)) > m.maxBytes {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(next), m.maxBytes)
	}
	m.content = next
	m.version++
	e := workingcopy.ContentChangedEvent{IsEmpty: len(next) == 0, Version: m.version}
	m.mu.Unlock()

	m.changed.Fire(e)
	return nil
}

// OnDidChangeContent registers fn for applied edits.
func (m *Model) OnDidChangeContent(fn func(workingcopy.ContentChangedEvent)) func() {
	return m.changed.Subscribe(fn)
}

// OnWillDispose registers fn for disposal requests.
func (m *Model) OnWillDispose(fn func()) func() {
	return m.willDispose.On(fn)
}

// Snapshot returns a copy of the current text.
func (m *Model) Snapshot(ctx context.Context) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	if m.disposed {
		m.mu.RUnlock()
		return nil, fmt.Errorf("textmodel: snapshot %s: %w", m.resource, apperr.ErrDisposed)
	}
	data := bytes.Clone(m.content)
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// RequestDispose asks the owner to dispose the model, e.g. when the buffer is
// closed from outside.
func (m *Model) RequestDispose() {
	m.willDispose.Notify()
}

// Dispose releases the buffer and listeners. It is safe to call repeatedly.
func (m *Model) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	m.content = nil
	m.mu.Unlock()

	m.changed.Dispose()
	m.willDispose.Dispose()
}

// IsDisposed reports whether Dispose was called.
func (m *Model) IsDisposed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disposed
}
