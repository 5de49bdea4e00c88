package textmodel

import (
	"context"
	"fmt"
	"io"

	"github.com/starford/scratch/internal/resource"
	"github.com/starford/scratch/internal/workingcopy"
)

const readChunk = 32 << 10

// Factory creates text models from content streams.
type Factory struct {
	maxBytes int64
}

var _ workingcopy.ModelFactory = (*Factory)(nil)

// NewFactory returns a factory whose models hold at most maxBytes.
// A non-positive maxBytes disables the limit.
func NewFactory(maxBytes int64) *Factory {
	return &Factory{maxBytes: maxBytes}
}

// CreateModel reads content fully and returns a model holding it.
func (f *Factory) CreateModel(ctx context.Context, res resource.URI, content io.Reader) (workingcopy.ContentModel, error) {
	data, err := readAll(ctx, content, f.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("textmodel: create %s: %w", res, err)
	}
	return newModel(res, data, f.maxBytes), nil
}

// readAll reads r in chunks, checking ctx between reads.
func readAll(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	out := make([]byte, 0, 512)
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if limit > 0 && int64(len(out)) > limit {
			return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, limit)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
