// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"archive/tar"
	"io/fs"
	"time"
)

// Member is one entry of the source archive as described by its tar header.
type Member struct {
	// Name is the path of the member inside the archive.
	Name string

	// Mode holds the permission and mode bits as stored in the header.
	Mode int64

	// Uid is the user id of the owner.
	Uid int

	// Gid is the group id of the owner.
	Gid int

	// Uname is the user name of the owner.
	Uname string

	// Gname is the group name of the owner.
	Gname string

	// ModTime is the modification time.
	ModTime time.Time

	// Size is the content length in bytes.
	Size int64

	// Typeflag is the tar type of the entry.
	Typeflag byte

	// Linkname is the target of hard and symbolic links.
	Linkname string

	// index is the position in the archive
	index int

	// path is the normalized name
	path string
}

// newMember returns a [Member] describing hdr at position index
func newMember(hdr *tar.Header, index int) *Member {
	return &Member{
		Name:     hdr.Name,
		Mode:     hdr.Mode,
		Uid:      hdr.Uid,
		Gid:      hdr.Gid,
		Uname:    hdr.Uname,
		Gname:    hdr.Gname,
		ModTime:  hdr.ModTime,
		Size:     hdr.Size,
		Typeflag: hdr.Typeflag,
		Linkname: hdr.Linkname,
		index:    index,
		path:     cleanName(hdr.Name),
	}
}

// Index returns the position of the member in the source archive.
func (m *Member) Index() int {
	return m.index
}

// IsDir returns true if the member is a directory.
func (m *Member) IsDir() bool {
	return m.Typeflag == tar.TypeDir
}

// IsRegular returns true if the member is a regular file.
func (m *Member) IsRegular() bool {
	return m.Typeflag == tar.TypeReg
}

// IsSymlink returns true if the member is a symbolic link.
func (m *Member) IsSymlink() bool {
	return m.Typeflag == tar.TypeSymlink
}

// IsHardlink returns true if the member is a hard link.
func (m *Member) IsHardlink() bool {
	return m.Typeflag == tar.TypeLink
}

// FileMode returns the mode of the member as [fs.FileMode].
func (m *Member) FileMode() fs.FileMode {
	return m.header().FileInfo().Mode()
}

// header builds a tar header carrying the metadata of the member
func (m *Member) header() *tar.Header {
	return &tar.Header{
		Name:     m.Name,
		Mode:     m.Mode,
		Uid:      m.Uid,
		Gid:      m.Gid,
		Uname:    m.Uname,
		Gname:    m.Gname,
		ModTime:  m.ModTime,
		Size:     m.Size,
		Typeflag: m.Typeflag,
		Linkname: m.Linkname,
	}
}
