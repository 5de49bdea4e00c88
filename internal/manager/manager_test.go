package manager

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/scratch/internal/apperr"
	"github.com/starford/scratch/internal/backup"
	"github.com/starford/scratch/internal/textmodel"
	"github.com/starford/scratch/internal/workingcopy"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) backup.Store {
	t.Helper()
	s, err := backup.Open(backup.DriverFS, filepath.Join(t.TempDir(), "backups"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind string, wc *workingcopy.Untitled) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+Key(wc))
}

func (r *recorder) all() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.events, ",")
}

func TestCreate_AllocatesLowestFreeName(t *testing.T) {
	m := New(textmodel.NewFactory(0), WithLogger(quietLogger()))
	ctx := context.Background()

	a, _ := m.Create(ctx, CreateOptions{})
	b, _ := m.Create(ctx, CreateOptions{})
	if a.Name() != "Untitled-1" || b.Name() != "Untitled-2" {
		t.Fatalf("names = %s, %s", a.Name(), b.Name())
	}

	a.Dispose()
	c, _ := m.Create(ctx, CreateOptions{})
	if c.Name() != "Untitled-1" {
		t.Errorf("reused name = %s, want Untitled-1", c.Name())
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
}

func TestCreate_AssociatedPath(t *testing.T) {
	m := New(textmodel.NewFactory(0), WithLogger(quietLogger()))
	ctx := context.Background()

	wc, err := m.Create(ctx, CreateOptions{AssociatedPath: "notes/plan.md"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !wc.HasAssociatedFilePath() || !wc.IsDirty() {
		t.Errorf("associated=%v dirty=%v", wc.HasAssociatedFilePath(), wc.IsDirty())
	}
	if Key(wc) != "notes/plan.md" {
		t.Errorf("Key = %q", Key(wc))
	}

	if _, err := m.Create(ctx, CreateOptions{AssociatedPath: "notes/plan.md"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create err = %v, want ErrAlreadyExists", err)
	}

	got, err := m.Get("notes/plan.md")
	if err != nil || got != wc {
		t.Errorf("Get = %v, %v", got, err)
	}
}

func TestCreate_ResolveWithInitialValue(t *testing.T) {
	m := New(textmodel.NewFactory(0), WithLogger(quietLogger()))
	wc, err := m.Create(context.Background(), CreateOptions{
		InitialValue: strings.NewReader("hello"),
		Resolve:      true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tm, err := m.TextModel(context.Background(), wc)
	if err != nil {
		t.Fatalf("TextModel: %v", err)
	}
	if tm.Value() != "hello" {
		t.Errorf("value = %q", tm.Value())
	}
}

func TestCreate_ResolveFailureDisposes(t *testing.T) {
	m := New(textmodel.NewFactory(2), WithLogger(quietLogger()))
	_, err := m.Create(context.Background(), CreateOptions{
		InitialValue: strings.NewReader("too large"),
		Resolve:      true,
	})
	if !errors.Is(err, textmodel.ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if m.Len() != 0 {
		t.Errorf("failed copy should not stay live, Len = %d", m.Len())
	}
}

func TestGet_NotFound(t *testing.T) {
	m := New(textmodel.NewFactory(0), WithLogger(quietLogger()))
	if _, err := m.Get("Untitled-9"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEvents(t *testing.T) {
	rec := &recorder{}
	m := New(textmodel.NewFactory(0), WithLogger(quietLogger()), WithEventCallback(rec.record))
	ctx := context.Background()

	wc, err := m.Create(ctx, CreateOptions{Resolve: true})
	if err != nil {
		t.Fatal(err)
	}
	tm, _ := m.TextModel(ctx, wc)
	_ = tm.SetValue("x")
	if err := wc.Revert(ctx); err != nil {
		t.Fatal(err)
	}

	want := "created:Untitled-1,dirty:Untitled-1,content:Untitled-1,clean:Untitled-1,reverted:Untitled-1,disposed:Untitled-1"
	if got := rec.all(); got != want {
		t.Errorf("events =\n%s\nwant\n%s", got, want)
	}
}

func TestRestoreFromBackups(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first := New(textmodel.NewFactory(0), WithLogger(quietLogger()), WithBackups(store, time.Hour))
	a, _ := first.Create(ctx, CreateOptions{Resolve: true})
	b, _ := first.Create(ctx, CreateOptions{AssociatedPath: "notes/b.md", Resolve: true})
	c, _ := first.Create(ctx, CreateOptions{Resolve: true})
	tmA, _ := first.TextModel(ctx, a)
	tmB, _ := first.TextModel(ctx, b)
	_ = tmA.SetValue("alpha")
	_ = tmB.SetValue("beta")
	_ = c // clean copies leave no backup
	first.Close()

	second := New(textmodel.NewFactory(0), WithLogger(quietLogger()), WithBackups(store, time.Hour))
	defer second.Close()
	n, err := second.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 2 {
		t.Fatalf("restored = %d, want 2", n)
	}

	ra, err := second.Get("Untitled-1")
	if err != nil {
		t.Fatalf("Get Untitled-1: %v", err)
	}
	rb, err := second.Get("notes/b.md")
	if err != nil {
		t.Fatalf("Get notes/b.md: %v", err)
	}
	if !ra.IsDirty() || !rb.IsDirty() || !rb.HasAssociatedFilePath() {
		t.Error("restored copies should be dirty, associated flag preserved")
	}
	tmRA, _ := second.TextModel(ctx, ra)
	if tmRA.Value() != "alpha" {
		t.Errorf("restored value = %q", tmRA.Value())
	}

	again, err := second.Restore(ctx)
	if err != nil || again != 0 {
		t.Errorf("second Restore = %d, %v; want 0", again, err)
	}

	next, _ := second.Create(ctx, CreateOptions{})
	if next.Name() != "Untitled-2" {
		t.Errorf("next name = %s, want Untitled-2", next.Name())
	}
}

func TestCreate_SkipsNamesHeldByBackups(t *testing.T) {
	m := New(textmodel.NewFactory(0), WithLogger(quietLogger()), WithBackups(testStore(t), time.Hour))
	defer m.Close()
	ctx := context.Background()

	old, err := m.Create(ctx, CreateOptions{InitialValue: strings.NewReader("old draft"), Resolve: true})
	if err != nil {
		t.Fatal(err)
	}
	tmOld, _ := m.TextModel(ctx, old)
	_ = tmOld.SetValue("old draft edited")
	old.Dispose()

	fresh, err := m.Create(ctx, CreateOptions{InitialValue: strings.NewReader("brand new"), Resolve: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if fresh.Name() == "Untitled-1" {
		t.Fatal("name of a backed-up copy was reused")
	}
	tm, _ := m.TextModel(ctx, fresh)
	if tm.Value() != "brand new" {
		t.Errorf("value = %q, want the initial value", tm.Value())
	}
}

func TestCreate_AssociatedPathHeldByBackup(t *testing.T) {
	m := New(textmodel.NewFactory(0), WithLogger(quietLogger()), WithBackups(testStore(t), time.Hour))
	defer m.Close()
	ctx := context.Background()

	wc, err := m.Create(ctx, CreateOptions{AssociatedPath: "notes/a.md", Resolve: true})
	if err != nil {
		t.Fatal(err)
	}
	tm, _ := m.TextModel(ctx, wc)
	_ = tm.SetValue("kept")
	wc.Dispose()

	_, err = m.Create(ctx, CreateOptions{AssociatedPath: "notes/a.md", InitialValue: strings.NewReader("other")})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreate_ReusesNameAfterRevert(t *testing.T) {
	m := New(textmodel.NewFactory(0), WithLogger(quietLogger()), WithBackups(testStore(t), time.Hour))
	defer m.Close()
	ctx := context.Background()

	wc, _ := m.Create(ctx, CreateOptions{Resolve: true})
	tm, _ := m.TextModel(ctx, wc)
	_ = tm.SetValue("scrap")
	if err := wc.Revert(ctx); err != nil {
		t.Fatal(err)
	}

	next, err := m.Create(ctx, CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if next.Name() != "Untitled-1" {
		t.Errorf("name = %s, want Untitled-1", next.Name())
	}
}

func TestClose_DisposesAll(t *testing.T) {
	m := New(textmodel.NewFactory(0), WithLogger(quietLogger()))
	ctx := context.Background()
	a, _ := m.Create(ctx, CreateOptions{})
	b, _ := m.Create(ctx, CreateOptions{Resolve: true})

	m.Close()

	if !a.IsDisposed() || !b.IsDisposed() || m.Len() != 0 {
		t.Error("Close should dispose all copies")
	}
}
