package sink

import (
	"bytes"
	"context"
	"io"

	"github.com/mvp-joe/class-shadow/internal/stub"
)

// Writer renders every package into memory and writes the result to w in a
// single call. Packages are separated by a blank line.
type Writer struct {
	w io.Writer
}

// NewWriter creates a sink writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) Emit(ctx context.Context, b Batch) error {
	var buf bytes.Buffer
	for i, pu := range b.Packages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		if err := stub.Render(&buf, pu); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.w.Write(buf.Bytes())
	return err
}
