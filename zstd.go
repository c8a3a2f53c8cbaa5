// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"context"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// magicBytesZstd is the magic bytes for zstandard files.
// reference: https://www.rfc-editor.org/rfc/rfc8878.html
var magicBytesZstd = [][]byte{
	{0x28, 0xb5, 0x2f, 0xfd},
}

// isZstd checks if the header matches the zstandard magic bytes.
func isZstd(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesZstd)
}

// newZstdEncoder returns an encoder writing to dst. The level is given in
// zstandard terms (1-22) and mapped to the closest encoder speed.
func newZstdEncoder(dst io.Writer, level int, concurrency int) (*zstd.Encoder, error) {
	enc, err := zstd.NewWriter(dst,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(concurrency),
	)
	if err != nil {
		return nil, errors.Wrapf(ErrCodecUnavailable, "%v", err)
	}
	return enc, nil
}

// compressZstdStream compresses src into dst in one streaming pass and
// returns the number of bytes read from src.
func compressZstdStream(ctx context.Context, src io.Reader, dst io.Writer, level int, concurrency int) (int64, error) {
	enc, err := newZstdEncoder(dst, level, concurrency)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(enc, newContextReader(ctx, src))
	if err != nil {
		enc.Close()
		return n, errors.Wrap(err, "cannot compress container")
	}
	if err := enc.Close(); err != nil {
		return n, errors.Wrap(err, "cannot finish zstandard stream")
	}
	return n, nil
}
