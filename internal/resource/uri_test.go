package resource

import "testing"

func TestUntitled(t *testing.T) {
	r := Untitled("Untitled-1")
	if !r.IsUntitled() {
		t.Fatal("expected untitled scheme")
	}
	if r.String() != "untitled:Untitled-1" {
		t.Errorf("String = %q", r.String())
	}
	if r.Name() != "Untitled-1" {
		t.Errorf("Name = %q", r.Name())
	}
	if r.AssociatedPath() != "" {
		t.Errorf("AssociatedPath = %q, want empty", r.AssociatedPath())
	}
}

func TestForPath(t *testing.T) {
	r := ForPath("notes/../drafts/idea.md")
	if !r.IsUntitled() {
		t.Fatal("expected untitled scheme")
	}
	if r.AssociatedPath() != "drafts/idea.md" {
		t.Errorf("AssociatedPath = %q", r.AssociatedPath())
	}
	if r.Name() != "idea.md" {
		t.Errorf("Name = %q", r.Name())
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"untitled:Untitled-3", "untitled:///a/b.md"} {
		r, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if r.String() != s {
			t.Errorf("String = %q, want %q", r.String(), s)
		}
	}
}

func TestParseFileScheme(t *testing.T) {
	r, err := Parse("file:///tmp/a.md")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.IsUntitled() {
		t.Error("file URI must not be untitled")
	}
}

func TestParseMissingScheme(t *testing.T) {
	if _, err := Parse("just-a-name"); err == nil {
		t.Error("expected error for missing scheme")
	}
}
