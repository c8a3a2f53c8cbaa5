// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ErrNoContent is returned when a member has no content that can be copied,
// e.g. directories, devices or links pointing outside of the archive.
var ErrNoContent = errors.New("member has no readable content")

// maxLinkDepth limits how many links are followed to find a regular member
const maxLinkDepth = 16

// SourceArchive is a read-only view on a gzip compressed tar archive.
//
// All headers are indexed when the archive is opened. Content is read from a
// sequential stream: reading forward reuses the open stream, reading a member
// that lies before the current position reopens the file.
type SourceArchive struct {
	path    string
	size    int64
	members []*Member
	byName  map[string]*Member
	byPath  map[string]*Member // normalized names, for link targets

	// sequential content stream
	f    *os.File
	cr   *contextReader
	zr   *gzip.Reader
	tr   *tar.Reader
	next int // index of the member returned by the next tr.Next()
}

// OpenSource opens the gzip compressed tar archive at name and indexes all
// of its members. Indexing stops with the context error once ctx is done.
func OpenSource(ctx context.Context, name string) (*SourceArchive, error) {
	fi, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrSourceNotFound, "%s", name)
		}
		return nil, errors.Wrap(err, "cannot stat source archive")
	}
	if fi.IsDir() {
		return nil, errors.Wrapf(ErrSourceNotFound, "%s is a directory", name)
	}

	s := &SourceArchive{
		path:   name,
		size:   fi.Size(),
		byName: make(map[string]*Member),
		byPath: make(map[string]*Member),
	}
	if err := s.rewind(ctx); err != nil {
		s.Close()
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			s.Close()
			return nil, err
		}
		hdr, err := s.tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "cannot read tar header")
		}
		m := newMember(hdr, len(s.members))
		s.members = append(s.members, m)
		s.byName[m.Name] = m // last occurrence wins
		s.byPath[m.path] = m
	}
	s.next = len(s.members)

	return s, nil
}

// Path returns the file name of the archive.
func (s *SourceArchive) Path() string {
	return s.path
}

// Size returns the compressed size of the archive.
func (s *SourceArchive) Size() int64 {
	return s.size
}

// Members returns all members in archive order.
func (s *SourceArchive) Members() []*Member {
	return s.members
}

// Lookup returns the member called name. If the archive holds more than one
// member with that name, the last one is returned.
func (s *SourceArchive) Lookup(name string) (*Member, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// Shadowed returns true if a later member has the same name as m.
func (s *SourceArchive) Shadowed(m *Member) bool {
	return s.byName[m.Name] != m
}

// Resolve follows hard and symbolic links inside the archive and returns the
// regular member holding the content of m, or nil if there is none.
func (s *SourceArchive) Resolve(m *Member) *Member {
	for depth := 0; m != nil && depth < maxLinkDepth; depth++ {
		switch {
		case m.IsRegular():
			return m
		case m.IsHardlink():
			m = s.lookupBefore(cleanName(m.Linkname), m.index)
		case m.IsSymlink():
			m = s.byPath[cleanName(path.Join(path.Dir(m.path), m.Linkname))]
		default:
			return nil
		}
	}
	return nil
}

// lookupBefore returns the last member with the normalized name located before index
func (s *SourceArchive) lookupBefore(name string, index int) *Member {
	for i := index - 1; i >= 0; i-- {
		if s.members[i].path == name {
			return s.members[i]
		}
	}
	return nil
}

// ReadContent reads the full content of m into memory. Links are resolved
// with [SourceArchive.Resolve]. It returns [ErrMemberNotFound] if m is not
// part of the archive and [ErrNoContent] if m does not resolve to a regular
// member. It stops with the context error once ctx is done. All other errors
// are I/O failures.
func (s *SourceArchive) ReadContent(ctx context.Context, m *Member) ([]byte, error) {
	if m == nil || m.index < 0 || m.index >= len(s.members) || s.members[m.index] != m {
		return nil, ErrMemberNotFound
	}
	target := s.Resolve(m)
	if target == nil {
		return nil, errors.Wrapf(ErrNoContent, "%s", m.Name)
	}

	if err := s.seek(ctx, target); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(int(target.Size))
	n, err := io.CopyN(&buf, s.tr, target.Size)
	s.next = target.index + 1
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s (%d of %d bytes)", target.Name, n, target.Size)
	}
	return buf.Bytes(), nil
}

// seek positions the stream at the content of target
func (s *SourceArchive) seek(ctx context.Context, target *Member) error {
	if s.tr == nil || target.index < s.next {
		if err := s.rewind(ctx); err != nil {
			return err
		}
	} else {
		s.cr.ctx = ctx
	}
	for s.next <= target.index {
		hdr, err := s.tr.Next()
		if err == io.EOF {
			return errors.Wrap(io.ErrUnexpectedEOF, "source archive ended early")
		}
		if err != nil {
			return errors.Wrap(err, "cannot read tar header")
		}
		if s.next == target.index && hdr.Name != target.Name {
			return errors.Errorf("source archive changed: expected %s at position %d, found %s", target.Name, target.index, hdr.Name)
		}
		s.next++
	}
	return nil
}

// rewind reopens the archive and positions the stream before the first member
func (s *SourceArchive) rewind(ctx context.Context) error {
	if err := s.closeStream(); err != nil {
		return err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return errors.Wrap(err, "cannot open source archive")
	}
	cr := newContextReader(ctx, f)
	zr, err := decompressGZipStream(cr)
	if err != nil {
		f.Close()
		return err
	}

	s.f = f
	s.cr = cr
	s.zr = zr
	s.tr = tar.NewReader(zr)
	s.next = 0
	return nil
}

// closeStream closes the sequential content stream
func (s *SourceArchive) closeStream() error {
	var err error
	if s.zr != nil {
		err = s.zr.Close()
		s.zr = nil
	}
	if s.f != nil {
		if cerr := s.f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "cannot close source archive")
		}
		s.f = nil
	}
	s.cr = nil
	s.tr = nil
	return err
}

// cleanName normalizes a member or link name, so "./a/b/" and "a/b" are equal
func cleanName(name string) string {
	return path.Clean("/" + name)[1:]
}

// Close releases the underlying file.
func (s *SourceArchive) Close() error {
	return s.closeStream()
}
