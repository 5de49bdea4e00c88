package backup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/scratch/internal/workingcopy"
)

const backupTimeout = 10 * time.Second

type tracked struct {
	wc    *workingcopy.Untitled
	timer *time.Timer
	gen   uint64
	offs  []func()
}

// Tracker keeps backups in step with working copies: dirty content is backed
// up after a debounce delay and the backup is discarded once the copy becomes
// clean or is reverted. A copy disposed while dirty keeps its backup so it can
// be restored later.
type Tracker struct {
	store  Store
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*tracked
	closed  bool

	// io serializes store writes so a late backup cannot resurrect a
	// discarded one.
	io sync.Mutex
}

// NewTracker creates a tracker that writes to store after delay.
func NewTracker(store Store, delay time.Duration, logger *slog.Logger) *Tracker {
	if delay <= 0 {
		delay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:   store,
		delay:   delay,
		logger:  logger,
		entries: make(map[string]*tracked),
	}
}

// Track starts following wc until it is disposed.
func (t *Tracker) Track(wc *workingcopy.Untitled) {
	key := wc.Identifier().String()

	e := &tracked{wc: wc}
	e.offs = append(e.offs,
		wc.OnDidChangeContent(func() {
			if wc.IsDirty() {
				t.schedule(key)
			}
		}),
		wc.OnDidChangeDirty(func() {
			if !wc.IsDirty() {
				t.discard(key, wc.Identifier())
			}
		}),
		wc.OnDidRevert(func() {
			t.discard(key, wc.Identifier())
		}),
		wc.OnWillDispose(func() {
			if wc.IsDirty() {
				t.flush(key)
			} else {
				t.discard(key, wc.Identifier())
			}
			t.untrack(key)
		}),
	)

	t.mu.Lock()
	_, dup := t.entries[key]
	skip := t.closed || dup
	if !skip {
		t.entries[key] = e
	}
	t.mu.Unlock()

	if skip {
		for _, off := range e.offs {
			off()
		}
	}
}

// Pending returns the number of scheduled backups.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if e.timer != nil {
			n++
		}
	}
	return n
}

// Flush writes every scheduled backup now.
func (t *Tracker) Flush() {
	t.mu.Lock()
	keys := make([]string, 0, len(t.entries))
	for k, e := range t.entries {
		if e.timer != nil {
			keys = append(keys, k)
		}
	}
	t.mu.Unlock()

	for _, k := range keys {
		t.flush(k)
	}
}

// Close stops all timers. Pending backups are not written; call Flush first.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for _, e := range t.entries {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
}

func (t *Tracker) schedule(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok || t.closed {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	gen := e.gen
	e.timer = time.AfterFunc(t.delay, func() { t.run(key, gen) })
}

// flush runs a scheduled backup immediately on the calling goroutine.
func (t *Tracker) flush(key string) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok || e.timer == nil {
		t.mu.Unlock()
		return
	}
	e.timer.Stop()
	gen := e.gen
	t.mu.Unlock()

	t.run(key, gen)
}

func (t *Tracker) run(key string, gen uint64) {
	t.io.Lock()
	defer t.io.Unlock()

	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok || e.gen != gen {
		t.mu.Unlock()
		return
	}
	e.timer = nil
	wc := e.wc
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	content, err := wc.Backup(ctx)
	if err != nil {
		t.logger.Warn("backup: snapshot failed",
			slog.String("resource", wc.Resource().String()),
			slog.String("error", err.Error()))
		return
	}
	if content.Content == nil {
		return
	}
	if err := t.store.Put(ctx, wc.Identifier(), content.Content); err != nil {
		t.logger.Warn("backup: write failed",
			slog.String("resource", wc.Resource().String()),
			slog.String("error", err.Error()))
		return
	}
	t.logger.Debug("backup: written", slog.String("resource", wc.Resource().String()))
}

func (t *Tracker) discard(key string, id workingcopy.Identifier) {
	t.mu.Lock()
	if e, ok := t.entries[key]; ok {
		e.gen++
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
	t.mu.Unlock()

	t.io.Lock()
	defer t.io.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()
	if err := t.store.Discard(ctx, id); err != nil {
		t.logger.Warn("backup: discard failed",
			slog.String("resource", id.Resource.String()),
			slog.String("error", err.Error()))
		return
	}
	t.logger.Debug("backup: discarded", slog.String("resource", id.Resource.String()))
}

func (t *Tracker) untrack(key string) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	t.mu.Unlock()

	if ok {
		for _, off := range e.offs {
			off()
		}
	}
}
