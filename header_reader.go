// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// maxHeaderLength is the number of bytes peeked from the source before decoding
const maxHeaderLength = 16

// headerReader is an implementation of io.Reader that allows the first bytes of
// the reader to be read twice. This is used to check the source format before
// decoding it.
type headerReader struct {
	r      io.Reader
	header []byte
	peeked []byte
}

func newHeaderReader(r io.Reader, headerSize int) (*headerReader, error) {
	// read at least headerSize bytes. If EOF, capture whatever was read.
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, errors.Wrap(err, "cannot read header")
	}
	return &headerReader{r: r, header: buf[:n], peeked: buf[:n]}, nil
}

func (p *headerReader) Read(b []byte) (int, error) {
	// read from header first
	if len(p.header) > 0 {
		n := copy(b, p.header)
		p.header = p.header[n:]
		return n, nil
	}

	// then continue reading from the source
	return p.r.Read(b)
}

// PeekHeader returns the bytes read ahead of the stream.
func (p *headerReader) PeekHeader() []byte {
	return p.peeked
}

// matchesMagicBytes checks if data contains one of magicBytes at offset
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	// check all possible magic bytes until match is found
	for _, mb := range magicBytes {
		// check if header is long enough
		if offset+len(mb) > len(data) {
			continue
		}

		// check for byte match
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}

	// no match found
	return false
}
