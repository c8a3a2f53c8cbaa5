// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"archive/tar"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

// Transcoder writes selected members into a tar container.
type Transcoder struct {
	tw       *tar.Writer
	cw       *countingWriter
	logger   logger
	progress Progress
	copied   int64
}

// NewTranscoder returns a [Transcoder] writing a tar stream to w.
func NewTranscoder(w io.Writer, cfg *Config) *Transcoder {
	cw := newCountingWriter(w)
	return &Transcoder{
		tw:       tar.NewWriter(cw),
		cw:       cw,
		logger:   cfg.Logger(),
		progress: cfg.Progress(),
	}
}

// CopyMember reads the content of m from src and appends it to the
// container as a regular file called dest. The header carries the mode,
// owner, group and modification time of m. Sub-second modification times
// are kept in a PAX header.
//
// It returns false without an error if m is not part of src or has no
// readable content. Read and write failures are returned as errors.
func (t *Transcoder) CopyMember(ctx context.Context, src *SourceArchive, m *Member, dest string) (bool, error) {
	content, err := src.ReadContent(ctx, m)
	if errors.Is(err, ErrMemberNotFound) || errors.Is(err, ErrNoContent) {
		name := "<nil>"
		if m != nil {
			name = m.Name
		}
		t.logger.Warn("skipping member", "path", name, "reason", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     dest,
		Size:     int64(len(content)),
		Mode:     m.Mode,
		Uid:      m.Uid,
		Gid:      m.Gid,
		Uname:    m.Uname,
		Gname:    m.Gname,
		ModTime:  m.ModTime,
	}
	if m.ModTime.Nanosecond() != 0 {
		hdr.Format = tar.FormatPAX
	}
	if err := t.tw.WriteHeader(hdr); err != nil {
		return false, errors.Wrapf(err, "cannot write header for %s", dest)
	}
	if _, err := t.tw.Write(content); err != nil {
		return false, errors.Wrapf(err, "cannot write content of %s", dest)
	}

	t.copied++
	t.progress.Increment()
	t.logger.Debug("copied member", "src", m.Name, "dst", dest, "size", hdr.Size, "mode", m.FileMode().String())
	return true, nil
}

// Copied returns the number of members written so far.
func (t *Transcoder) Copied() int64 {
	return t.copied
}

// Written returns the number of container bytes written so far.
func (t *Transcoder) Written() int64 {
	return t.cw.N
}

// Close writes the tar footer. It does not close the underlying writer.
func (t *Transcoder) Close() error {
	if err := t.tw.Close(); err != nil {
		return errors.Wrap(err, "cannot finish tar container")
	}
	return nil
}

// CompressionReport describes the result of [Finalize].
type CompressionReport struct {
	// OriginalSize is the size of the uncompressed container.
	OriginalSize int64

	// CompressedSize is the size of the output file.
	CompressedSize int64

	// Ratio is CompressedSize as a percentage of OriginalSize.
	Ratio float64

	// ContainerDigest is the hex encoded BLAKE3 digest of the uncompressed container.
	ContainerDigest string
}

// String returns the report as it is logged.
func (r CompressionReport) String() string {
	return fmt.Sprintf("%s bytes -> %s bytes (%.2f%%)", humanize.Comma(r.OriginalSize), humanize.Comma(r.CompressedSize), r.Ratio)
}

// Finalize compresses the tar container at containerPath with zstandard
// and writes the result to outputPath. The output is written to a partial
// file in the same directory and renamed on success, so a failed run never
// leaves a file at outputPath.
func Finalize(ctx context.Context, containerPath string, outputPath string, cfg *Config) (CompressionReport, error) {
	var report CompressionReport

	in, err := os.Open(containerPath)
	if err != nil {
		return report, errors.Wrap(err, "cannot open container")
	}
	defer in.Close()

	partial, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".partial-*")
	if err != nil {
		return report, errors.Wrap(err, "cannot create output file")
	}
	committed := false
	defer func() {
		if !committed {
			partial.Close()
			if err := os.Remove(partial.Name()); err != nil && !os.IsNotExist(err) {
				cfg.Logger().Warn("cannot remove partial output", "path", partial.Name(), "err", err)
			}
		}
	}()

	cfg.Logger().Info("compressing container", "container", containerPath, "output", outputPath, "level", cfg.CompressionLevel())

	hasher := blake3.New()
	out := newCountingWriter(partial)
	n, err := compressZstdStream(ctx, io.TeeReader(in, hasher), out, cfg.CompressionLevel(), cfg.EncoderConcurrency())
	if err != nil {
		return report, err
	}
	if err := checkZstdHeader(partial); err != nil {
		return report, err
	}
	if err := partial.Chmod(0o644); err != nil {
		return report, errors.Wrap(err, "cannot set output file mode")
	}
	if err := partial.Close(); err != nil {
		return report, errors.Wrap(err, "cannot close output file")
	}
	if err := os.Rename(partial.Name(), outputPath); err != nil {
		return report, errors.Wrap(err, "cannot move output file into place")
	}
	committed = true

	report.OriginalSize = n
	report.CompressedSize = out.N
	report.ContainerDigest = hex.EncodeToString(hasher.Sum(nil))
	if n > 0 {
		report.Ratio = float64(out.N) / float64(n) * 100
	}
	cfg.Logger().Info("compression finished",
		"original", humanize.Comma(report.OriginalSize),
		"compressed", humanize.Comma(report.CompressedSize),
		"ratio", fmt.Sprintf("%.2f%%", report.Ratio),
		"size", humanize.Bytes(uint64(report.CompressedSize)),
	)
	return report, nil
}

// checkZstdHeader verifies that f starts with a zstandard frame
func checkZstdHeader(f *os.File) error {
	header := make([]byte, len(magicBytesZstd[0]))
	if _, err := f.ReadAt(header, 0); err != nil {
		return errors.Wrap(err, "cannot read output header")
	}
	if !isZstd(header) {
		return errors.Wrap(ErrCodecUnavailable, "output is not a zstandard stream")
	}
	return nil
}
