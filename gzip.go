// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// magicBytesGZip are the magic bytes for gzip compressed files.
var magicBytesGZip = [][]byte{
	{0x1f, 0x8b},
}

// isGZip checks if the header matches the magic bytes for gzip compressed files.
func isGZip(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesGZip)
}

// decompressGZipStream checks the gzip magic bytes of src and returns a
// reader with the decompressed stream.
func decompressGZipStream(src io.Reader) (*gzip.Reader, error) {
	hr, err := newHeaderReader(src, maxHeaderLength)
	if err != nil {
		return nil, err
	}
	if !isGZip(hr.PeekHeader()) {
		return nil, ErrNotGzip
	}
	zr, err := gzip.NewReader(hr)
	if err != nil {
		return nil, errors.Wrap(err, "cannot start gzip decompression")
	}
	return zr, nil
}
