package red_media_browser

import (
	"context"
	"io"
)

// A context-aware io.Reader wrapper. Wrapping a response body in one of
// these is what lets a long chunked copy notice cancellation between reads.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
