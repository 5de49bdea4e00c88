package registry

import (
	"context"
	"testing"

	"github.com/starford/scratch/internal/resource"
	"github.com/starford/scratch/internal/textmodel"
	"github.com/starford/scratch/internal/workingcopy"
)

func newCopy(t *testing.T, reg *Registry, name string) *workingcopy.Untitled {
	t.Helper()
	wc, err := workingcopy.New("text", resource.Untitled(name), "",
		workingcopy.WithModelFactory(textmodel.NewFactory(0)),
		workingcopy.WithRegistry(reg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return wc
}

func TestRegisterOnConstruction(t *testing.T) {
	reg := New()
	wc := newCopy(t, reg, "Untitled-1")

	got, ok := reg.Get(resource.Untitled("Untitled-1"))
	if !ok || got != wc {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
}

func TestUnregisterOnDispose(t *testing.T) {
	reg := New()
	wc := newCopy(t, reg, "Untitled-1")
	wc.Dispose()
	if reg.Len() != 0 {
		t.Errorf("Len after dispose = %d, want 0", reg.Len())
	}
}

func TestUnregisterOnRevert(t *testing.T) {
	reg := New()
	wc := newCopy(t, reg, "Untitled-1")
	if err := wc.Resolve(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := wc.Revert(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Get(wc.Resource()); ok {
		t.Error("reverted copy should leave the registry")
	}
}

func TestListSorted(t *testing.T) {
	reg := New()
	newCopy(t, reg, "Untitled-2")
	newCopy(t, reg, "Untitled-1")

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].Name() != "Untitled-1" || list[1].Name() != "Untitled-2" {
		t.Errorf("order = %s, %s", list[0].Name(), list[1].Name())
	}
}

func TestStaleUnregisterKeepsReplacement(t *testing.T) {
	reg := New()
	first := newCopy(t, reg, "Untitled-1")
	second := newCopy(t, reg, "Untitled-1")

	first.Dispose()

	got, ok := reg.Get(resource.Untitled("Untitled-1"))
	if !ok || got != second {
		t.Error("disposing a replaced copy must not remove its replacement")
	}
}

func TestOnRegister(t *testing.T) {
	reg := New()
	var seen []string
	reg.OnRegister(func(wc *workingcopy.Untitled) { seen = append(seen, wc.Name()) })
	newCopy(t, reg, "Untitled-7")
	if len(seen) != 1 || seen[0] != "Untitled-7" {
		t.Errorf("hook saw %v", seen)
	}
}
