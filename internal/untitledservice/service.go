// Package untitledservice coordinates the manager and the save-as flow for
// the outer surfaces (REST API and MCP).
package untitledservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/scratch/internal/checksum"
	"github.com/starford/scratch/internal/manager"
	"github.com/starford/scratch/internal/parser"
	"github.com/starford/scratch/internal/saveas"
	"github.com/starford/scratch/internal/textmodel"
	"github.com/starford/scratch/internal/workingcopy"
)

// Detail is the full representation of an untitled copy.
type Detail struct {
	Key            string         `json:"key"`
	Name           string         `json:"name"`
	Resource       string         `json:"resource"`
	TypeID         string         `json:"type_id"`
	AssociatedPath string         `json:"associated_path,omitempty"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	Checksum       string         `json:"checksum"`
	Tags           []string       `json:"tags"`
	Frontmatter    map[string]any `json:"frontmatter,omitempty"`
	Version        int            `json:"version"`
	Dirty          bool           `json:"dirty"`
	Resolved       bool           `json:"resolved"`
}

// ListItem is a lightweight item in a list response. Title is empty until the
// copy is resolved.
type ListItem struct {
	Key            string `json:"key"`
	Name           string `json:"name"`
	Resource       string `json:"resource"`
	AssociatedPath string `json:"associated_path,omitempty"`
	Title          string `json:"title"`
	Dirty          bool   `json:"dirty"`
	Resolved       bool   `json:"resolved"`
}

// CreateInput describes a new copy.
type CreateInput struct {
	AssociatedPath string
	Content        string
	TypeID         string
}

// Edit modes.
const (
	EditReplace = "replace"
	EditAppend  = "append"
)

// Service coordinates manager and save-as operations.
type Service struct {
	mgr   *manager.Manager
	saver *saveas.Saver
}

// NewService creates a new untitled service.
func NewService(mgr *manager.Manager, saver *saveas.Saver) *Service {
	return &Service{mgr: mgr, saver: saver}
}

// List returns all live copies.
func (s *Service) List(_ context.Context) []ListItem {
	copies := s.mgr.List()
	items := make([]ListItem, 0, len(copies))
	for _, wc := range copies {
		item := ListItem{
			Key:            manager.Key(wc),
			Name:           wc.Name(),
			Resource:       wc.Resource().String(),
			AssociatedPath: wc.Resource().AssociatedPath(),
			Dirty:          wc.IsDirty(),
			Resolved:       wc.IsResolved(),
		}
		if item.Resolved {
			if tm, ok := textModel(wc); ok {
				item.Title = tm.Title()
			}
		}
		items = append(items, item)
	}
	return items
}

// Create makes and resolves a new copy.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Detail, error) {
	opts := manager.CreateOptions{
		TypeID:         workingcopy.TypeID(in.TypeID),
		AssociatedPath: strings.TrimSpace(in.AssociatedPath),
		Resolve:        true,
	}
	if in.Content != "" {
		opts.InitialValue = strings.NewReader(in.Content)
	}
	wc, err := s.mgr.Create(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, wc)
}

// Get resolves the copy addressed by key and returns its detail.
func (s *Service) Get(ctx context.Context, key string) (*Detail, error) {
	wc, err := s.mgr.Get(key)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, wc)
}

// Resolve is Get under the name the surfaces expose.
func (s *Service) Resolve(ctx context.Context, key string) (*Detail, error) {
	return s.Get(ctx, key)
}

// Edit replaces or appends content. A non-empty ifMatch must equal the
// checksum of the current content; the check and the edit are atomic.
func (s *Service) Edit(ctx context.Context, key, mode, content, ifMatch string) (*Detail, error) {
	wc, err := s.mgr.Get(key)
	if err != nil {
		return nil, err
	}
	tm, err := s.mgr.TextModel(ctx, wc)
	if err != nil {
		return nil, err
	}

	switch mode {
	case EditAppend:
		err = tm.AppendIfMatch(ifMatch, content)
	case EditReplace, "":
		err = tm.SetValueIfMatch(ifMatch, content)
	default:
		return nil, fmt.Errorf("untitledservice: unknown edit mode %q", mode)
	}
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, wc)
}

// Backup returns the current backup payload of the copy. Unresolved copies
// have an empty payload.
func (s *Service) Backup(ctx context.Context, key string) ([]byte, error) {
	wc, err := s.mgr.Get(key)
	if err != nil {
		return nil, err
	}
	content, err := wc.Backup(ctx)
	if err != nil {
		return nil, err
	}
	data, _, err := checksum.ReadAll(content.Content)
	return data, err
}

// Save writes the copy into the vault and discards it.
func (s *Service) Save(ctx context.Context, key, path string, overwrite bool) (*saveas.Result, error) {
	wc, err := s.mgr.Get(key)
	if err != nil {
		return nil, err
	}
	return s.saver.SaveAs(ctx, wc, saveas.Options{
		Path:      path,
		Overwrite: overwrite,
		Reason:    workingcopy.SaveReasonExplicit,
	})
}

// Revert drops the copy and its backup.
func (s *Service) Revert(ctx context.Context, key string) error {
	wc, err := s.mgr.Get(key)
	if err != nil {
		return err
	}
	return wc.Revert(ctx)
}

// Dispose closes the copy. A dirty copy keeps its backup.
func (s *Service) Dispose(_ context.Context, key string) error {
	wc, err := s.mgr.Get(key)
	if err != nil {
		return err
	}
	wc.Dispose()
	return nil
}

func (s *Service) detail(ctx context.Context, wc *workingcopy.Untitled) (*Detail, error) {
	tm, err := s.mgr.TextModel(ctx, wc)
	if err != nil {
		return nil, err
	}
	value := tm.Value()
	res := parser.Parse([]byte(value))
	return &Detail{
		Key:            manager.Key(wc),
		Name:           wc.Name(),
		Resource:       wc.Resource().String(),
		TypeID:         string(wc.TypeID()),
		AssociatedPath: wc.Resource().AssociatedPath(),
		Title:          tm.Title(),
		Content:        value,
		Checksum:       checksum.Sum([]byte(value)),
		Tags:           nonNilSlice(res.Tags),
		Frontmatter:    res.Frontmatter,
		Version:        tm.Version(),
		Dirty:          wc.IsDirty(),
		Resolved:       wc.IsResolved(),
	}, nil
}

// textModel returns the model of an already resolved copy without resolving.
func textModel(wc *workingcopy.Untitled) (*textmodel.Model, bool) {
	return textmodel.From(wc.Model())
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
