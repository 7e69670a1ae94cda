// CLASSIFICATION: COMMUNITY
// Filename: body.go v0.1
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

package static

import (
	"bufio"
	"context"
	"io"
	"os"
)

// defaultBufferSize bounds the memory held per streamed response.
const defaultBufferSize = 32 * 1024

// body yields exactly n bytes from the underlying file. Reads stop once ctx
// is done; the file itself is released by Close.
type body struct {
	ctx       context.Context
	r         *bufio.Reader
	c         io.Closer
	remaining int64
	closed    bool
}

func newBody(ctx context.Context, rc io.ReadCloser, n int64, size int) *body {
	return &body{
		ctx:       ctx,
		r:         bufio.NewReaderSize(rc, size),
		c:         rc,
		remaining: n,
	}
}

func (b *body) Read(p []byte) (int, error) {
	if b.closed {
		return 0, os.ErrClosed
	}
	if b.remaining <= 0 {
		return 0, io.EOF
	}
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	if err == io.EOF && b.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (b *body) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.c.Close()
}
