// Package resource defines working copy identities.
package resource

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Scheme is the reserved address space of unsaved documents.
const Scheme = "untitled"

// URI identifies a working copy.
//
// Untitled documents without a save target use the opaque form
// ("untitled:Untitled-1"). Documents pre-bound to a vault path keep that path
// under the untitled scheme ("untitled:///notes/draft.md").
type URI struct {
	u url.URL
}

// Parse parses s into a URI. Any scheme is accepted; use IsUntitled to check.
func Parse(s string) (URI, error) {
	u, err := url.Parse(s)
	if err != nil {
		return URI{}, fmt.Errorf("resource: parse %q: %w", s, err)
	}
	if u.Scheme == "" {
		return URI{}, fmt.Errorf("resource: missing scheme in %q", s)
	}
	return URI{u: *u}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) URI {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Untitled returns the opaque untitled URI for a display name.
func Untitled(name string) URI {
	return URI{u: url.URL{Scheme: Scheme, Opaque: url.PathEscape(name)}}
}

// ForPath returns an untitled URI bound to the vault-relative path p.
func ForPath(p string) URI {
	cleaned := path.Clean("/" + strings.TrimPrefix(p, "/"))
	return URI{u: url.URL{Scheme: Scheme, Path: cleaned}}
}

// Scheme returns the URI scheme.
func (r URI) Scheme() string { return r.u.Scheme }

// IsUntitled reports whether r belongs to the untitled address space.
func (r URI) IsUntitled() bool { return r.u.Scheme == Scheme }

// IsZero reports whether r is the zero URI.
func (r URI) IsZero() bool { return r.u.Scheme == "" }

// AssociatedPath returns the vault-relative save target, or "" for opaque URIs.
func (r URI) AssociatedPath() string {
	if r.u.Opaque != "" || r.u.Path == "" {
		return ""
	}
	return strings.TrimPrefix(r.u.Path, "/")
}

// Name returns the last segment: the display name for opaque URIs and the
// file name for path-bound ones.
func (r URI) Name() string {
	if r.u.Opaque != "" {
		if name, err := url.PathUnescape(r.u.Opaque); err == nil {
			return name
		}
		return r.u.Opaque
	}
	return path.Base(r.u.Path)
}

func (r URI) String() string { return r.u.String() }
