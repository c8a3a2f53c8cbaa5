// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"context"
	"io"
)

// contextReader is a reader that stops with the context error once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

// Read checks the context before reading from the underlying reader.
func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// newContextReader returns a new contextReader that reads from r.
func newContextReader(ctx context.Context, r io.Reader) *contextReader {
	return &contextReader{ctx: ctx, r: r}
}
