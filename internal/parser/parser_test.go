package parser

import (
	"errors"
	"strings"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - drafts\n---\n# Hello\nBody text.\n")
	r := Parse(input)
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "drafts" {
		t.Errorf("tags = %v, want [go drafts]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r := Parse([]byte("# Just a heading\nSome text.\n"))
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate([]byte("---\ntitle: ok\n---\nbody")); err != nil {
		t.Errorf("valid frontmatter: %v", err)
	}
	if err := Validate([]byte("plain text")); err != nil {
		t.Errorf("plain text: %v", err)
	}
	err := Validate([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if !errors.Is(err, ErrFrontmatter) {
		t.Errorf("err = %v, want ErrFrontmatter", err)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{
		"tags": []any{"alpha"},
	}
	tags := extractTags("Some text #beta and #alpha again.", fm)
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	if title := deriveTitle(fm, "# H1 Title\ntext"); title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	if title := deriveTitle(nil, "some text\n# My Heading\nmore"); title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}

func TestTitle_FirstLineFallback(t *testing.T) {
	if got := Title([]byte("\n\n  shopping list\nmilk\n")); got != "shopping list" {
		t.Errorf("title = %q", got)
	}
}

func TestTitle_Truncated(t *testing.T) {
	long := strings.Repeat("word ", 20)
	got := Title([]byte(long))
	if n := len([]rune(got)); n > MaxTitleRunes {
		t.Errorf("title has %d runes, want <= %d", n, MaxTitleRunes)
	}
}

func TestTitle_Empty(t *testing.T) {
	if got := Title(nil); got != "" {
		t.Errorf("title = %q, want empty", got)
	}
}
