// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import "io"

// countingWriter is a wrapper around an io.Writer that counts the bytes
// written to the underlying writer.
type countingWriter struct {
	W io.Writer // underlying writer
	N int64     // number of bytes written
}

// Write writes p to the underlying writer and adds the number of written bytes to N.
func (c *countingWriter) Write(p []byte) (n int, err error) {
	n, err = c.W.Write(p)
	c.N += int64(n)
	return n, err
}

// newCountingWriter returns a new countingWriter that wraps w.
func newCountingWriter(w io.Writer) *countingWriter {
	return &countingWriter{W: w}
}
