package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/starford/scratch/internal/checksum"
	"github.com/starford/scratch/internal/resource"
	"github.com/starford/scratch/internal/storage"
	"github.com/starford/scratch/internal/workingcopy"
)

const fileSuffix = ".backup"

// meta is the first line of every backup file.
type meta struct {
	Resource  string    `json:"resource"`
	TypeID    string    `json:"type_id"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FS stores one file per backup: a JSON meta line followed by the raw content.
// File names are name-based UUIDs of the working copy identity.
type FS struct {
	files storage.Provider
}

var _ Store = (*FS)(nil)

// NewFS creates a backup store on top of files.
func NewFS(files storage.Provider) *FS {
	return &FS{files: files}
}

func fileName(id workingcopy.Identifier) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id.String())).String() + fileSuffix
}

// Put writes the backup atomically. Unchanged content is not rewritten.
func (f *FS) Put(ctx context.Context, id workingcopy.Identifier, content io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, sum, err := checksum.ReadAll(content)
	if err != nil {
		return fmt.Errorf("backup: put %s: %w", id.Resource, err)
	}

	name := fileName(id)
	if existing, _, err := f.read(name); err == nil && existing.Checksum == sum {
		return nil
	}

	header, err := json.Marshal(meta{
		Resource:  id.Resource.String(),
		TypeID:    string(id.TypeID),
		Checksum:  sum,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("backup: encode meta: %w", err)
	}

	buf := make([]byte, 0, len(header)+1+len(data))
	buf = append(buf, header...)
	buf = append(buf, '\n')
	buf = append(buf, data...)

	if err := f.files.Write(name, buf); err != nil {
		return fmt.Errorf("backup: put %s: %w", id.Resource, err)
	}
	return nil
}

// Resolve returns the stored backup for id, or nil when there is none.
func (f *FS) Resolve(ctx context.Context, id workingcopy.Identifier) (*workingcopy.Backup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, content, err := f.read(fileName(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup: resolve %s: %w", id.Resource, err)
	}
	return &workingcopy.Backup{Value: bytes.NewReader(content)}, nil
}

// Discard deletes the backup file for id.
func (f *FS) Discard(ctx context.Context, id workingcopy.Identifier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.files.Delete(fileName(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("backup: discard %s: %w", id.Resource, err)
	}
	return nil
}

// List returns the identities found in backup file headers. Files with an
// unreadable header are skipped.
func (f *FS) List(ctx context.Context) ([]workingcopy.Identifier, error) {
	entries, err := f.files.List("", fileSuffix)
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	out := make([]workingcopy.Identifier, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, _, err := f.read(e.Path)
		if err != nil {
			continue
		}
		res, err := resource.Parse(m.Resource)
		if err != nil {
			continue
		}
		out = append(out, workingcopy.Identifier{TypeID: workingcopy.TypeID(m.TypeID), Resource: res})
	}
	return out, nil
}

// Close is a no-op; FS holds no open handles.
func (f *FS) Close() error { return nil }

func (f *FS) read(name string) (meta, []byte, error) {
	raw, err := f.files.Read(name)
	if err != nil {
		return meta{}, nil, err
	}
	header, content, ok := bytes.Cut(raw, []byte("\n"))
	if !ok {
		return meta{}, nil, fmt.Errorf("backup: %s: missing header", name)
	}
	var m meta
	if err := json.Unmarshal(header, &m); err != nil {
		return meta{}, nil, fmt.Errorf("backup: %s: decode header: %w", name, err)
	}
	if checksum.Sum(content) != m.Checksum {
		return meta{}, nil, fmt.Errorf("backup: %s: checksum mismatch", name)
	}
	return m, content, nil
}
