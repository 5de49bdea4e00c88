package backup

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/scratch/internal/registry"
	"github.com/starford/scratch/internal/resource"
	"github.com/starford/scratch/internal/textmodel"
	"github.com/starford/scratch/internal/workingcopy"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type trackerEnv struct {
	store   Store
	tracker *Tracker
	reg     *registry.Registry
}

func newTrackerEnv(t *testing.T, delay time.Duration) *trackerEnv {
	t.Helper()
	store := testFS(t)
	tr := NewTracker(store, delay, quietLogger())
	t.Cleanup(tr.Close)
	reg := registry.New()
	reg.OnRegister(tr.Track)
	return &trackerEnv{store: store, tracker: tr, reg: reg}
}

func (e *trackerEnv) open(t *testing.T, name string, opts ...workingcopy.Option) (*workingcopy.Untitled, *textmodel.Model) {
	t.Helper()
	all := append([]workingcopy.Option{
		workingcopy.WithModelFactory(textmodel.NewFactory(0)),
		workingcopy.WithBackups(e.store),
		workingcopy.WithRegistry(e.reg),
		workingcopy.WithLogger(quietLogger()),
	}, opts...)
	wc, err := workingcopy.New("text", resource.Untitled(name), "", all...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := wc.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	m, _ := textmodel.From(wc.Model())
	return wc, m
}

func eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error(msg)
}

func (e *trackerEnv) backupOf(wc *workingcopy.Untitled) (string, bool) {
	b, err := e.store.Resolve(context.Background(), wc.Identifier())
	if err != nil || b == nil {
		return "", false
	}
	data, _ := io.ReadAll(b.Value)
	return string(data), true
}

func TestTracker_DebouncedBackup(t *testing.T) {
	env := newTrackerEnv(t, 30*time.Millisecond)
	wc, m := env.open(t, "Untitled-1")

	_ = m.SetValue("a")
	_ = m.SetValue("ab")
	_ = m.SetValue("abc")

	if env.tracker.Pending() != 1 {
		t.Errorf("pending = %d, want 1", env.tracker.Pending())
	}
	eventually(t, time.Second, func() bool {
		got, ok := env.backupOf(wc)
		return ok && got == "abc"
	}, "backup with latest content was never written")
}

func TestTracker_EmptyingDiscardsBackup(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	wc, m := env.open(t, "Untitled-1")

	_ = m.SetValue("draft")
	env.tracker.Flush()
	if _, ok := env.backupOf(wc); !ok {
		t.Fatal("flush should write the backup")
	}

	_ = m.SetValue("")
	if _, ok := env.backupOf(wc); ok {
		t.Error("clean copy should have no backup")
	}
	if env.tracker.Pending() != 0 {
		t.Error("no backup should be pending")
	}
}

func TestTracker_RevertDiscardsBackup(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	wc, m := env.open(t, "Untitled-1")
	_ = m.SetValue("draft")
	env.tracker.Flush()

	if err := wc.Revert(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := env.backupOf(wc); ok {
		t.Error("reverted copy should have no backup")
	}
}

func TestTracker_DisposeWhileDirtyFlushesBackup(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	wc, m := env.open(t, "Untitled-1")
	_ = m.SetValue("unsaved work")

	wc.Dispose()

	got, ok := env.backupOf(wc)
	if !ok || got != "unsaved work" {
		t.Errorf("backup = %q, %v; want flushed content", got, ok)
	}
}

func TestTracker_BackupRestoresIntoNewCopy(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	wc, m := env.open(t, "Untitled-1")
	_ = m.SetValue("survives restart")
	wc.Dispose()

	restored, rm := env.open(t, "Untitled-1")
	if !restored.IsDirty() {
		t.Error("restored copy should be dirty")
	}
	if rm.Value() != "survives restart" {
		t.Errorf("restored content = %q", rm.Value())
	}
}

func TestTracker_InitialValueIsBackedUp(t *testing.T) {
	env := newTrackerEnv(t, time.Hour)
	wc, _ := env.open(t, "Untitled-1", workingcopy.WithInitialValue(strings.NewReader("seed")))

	env.tracker.Flush()
	got, ok := env.backupOf(wc)
	if !ok || got != "seed" {
		t.Errorf("backup = %q, %v", got, ok)
	}
}
