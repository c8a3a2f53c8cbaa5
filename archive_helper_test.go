// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// testModTime is the modification time of all generated members without an explicit one
var testModTime = time.Unix(1718000000, 0)

// subSecondModTime needs a PAX header to be stored
var subSecondModTime = time.Unix(1718000000, 123456789)

// archiveContent describes one member of a generated test archive
type archiveContent struct {
	Name       string
	Content    []byte
	Mode       int64
	Filetype   byte
	Linktarget string
	Uid        int
	Gid        int
	Uname      string
	Gname      string
	ModTime    time.Time
}

// packTar creates a tar stream with the given content
func packTar(t *testing.T, contents []archiveContent) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, c := range contents {
		typeflag := c.Filetype
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		mode := c.Mode
		if mode == 0 {
			mode = 0o644
			if typeflag == tar.TypeDir {
				mode = 0o755
			}
		}
		modTime := c.ModTime
		if modTime.IsZero() {
			modTime = testModTime
		}
		hdr := &tar.Header{
			Name:     c.Name,
			Mode:     mode,
			Size:     int64(len(c.Content)),
			Linkname: c.Linktarget,
			Typeflag: typeflag,
			Uid:      c.Uid,
			Gid:      c.Gid,
			Uname:    c.Uname,
			Gname:    c.Gname,
			ModTime:  modTime,
		}
		if typeflag != tar.TypeReg {
			hdr.Size = 0
		}
		if modTime.Nanosecond() != 0 {
			hdr.Format = tar.FormatPAX
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Size > 0 {
			_, err := tw.Write(c.Content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

// packTarGz writes a gzip compressed tar archive with the given content to a
// temporary directory and returns its path
func packTarGz(t *testing.T, contents []archiveContent) string {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := gzip.NewWriter(buf)
	_, err := zw.Write(packTar(t, contents))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	name := filepath.Join(t.TempDir(), "sdk.tar.gz")
	require.NoError(t, os.WriteFile(name, buf.Bytes(), 0o644))
	return name
}

// tarFile is a member read back from a tar stream
type tarFile struct {
	Header  *tar.Header
	Content []byte
}

// readTar reads all members of a tar stream
func readTar(t *testing.T, r io.Reader) []tarFile {
	t.Helper()

	var files []tarFile
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files = append(files, tarFile{Header: hdr, Content: content})
	}
	return files
}

// readTarZst decompresses the zstandard file at name and returns the tar stream
func readTarZst(t *testing.T, name string) []byte {
	t.Helper()

	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()

	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()

	data, err := io.ReadAll(dec)
	require.NoError(t, err)
	return data
}

// names returns the member names of files
func names(files []tarFile) []string {
	var n []string
	for _, f := range files {
		n = append(n, f.Header.Name)
	}
	return n
}

// sdkContent returns a small Cangjie SDK layout
func sdkContent() []archiveContent {
	return []archiveContent{
		{Name: "cangjie/", Filetype: tar.TypeDir},
		{Name: "cangjie/envsetup.sh", Content: []byte("export CANGJIE_HOME=...\n"), Mode: 0o755},
		{Name: "cangjie/tools/", Filetype: tar.TypeDir},
		{Name: "cangjie/tools/bin/", Filetype: tar.TypeDir},
		{Name: "cangjie/tools/bin/cjlint", Content: []byte("cjlint binary"), Mode: 0o755, Uid: 1000, Gid: 1000, Uname: "build", Gname: "build"},
		{Name: "cangjie/tools/bin/cjfmt", Content: []byte("cjfmt binary"), Mode: 0o755, Uid: 1000, Gid: 1000, Uname: "build", Gname: "build"},
		{Name: "cangjie/tools/bin/cjpm", Content: []byte("cjpm binary"), Mode: 0o755},
		{Name: "cangjie/tools/lib/", Filetype: tar.TypeDir},
		{Name: "cangjie/tools/lib/libcjlint.so", Content: []byte("libcjlint"), Mode: 0o755, ModTime: time.Unix(1717000000, 0)},
		{Name: "cangjie/tools/lib/libcangjie-lsp.so", Content: []byte("liblsp"), Mode: 0o755},
		{Name: "cangjie/tools/config/", Filetype: tar.TypeDir},
		{Name: "cangjie/tools/config/cjlint_rule_list.json", Content: []byte(`{"rules":[]}`), ModTime: subSecondModTime},
		{Name: "cangjie/tools/config/sub/", Filetype: tar.TypeDir},
		{Name: "cangjie/tools/config/sub/exclude_lists.json", Content: []byte(`[]`), Mode: 0o600},
		{Name: "cangjie/runtime/lib/linux_x86_64_llvm/", Filetype: tar.TypeDir},
		{Name: "cangjie/runtime/lib/linux_x86_64_llvm/libsecurec.so", Content: []byte("securec"), Mode: 0o755},
		{Name: "cangjie/runtime/lib/linux_x86_64_llvm/libcangjie-runtime.so", Content: []byte("runtime"), Mode: 0o755},
		{Name: "cangjie/runtime/lib/linux_x86_64_llvm/libcangjie-std-core.so", Content: []byte("std-core"), Mode: 0o755},
		{Name: "cangjie/modules/linux_x86_64_llvm/std/", Filetype: tar.TypeDir},
		{Name: "cangjie/modules/linux_x86_64_llvm/std/core.cjo", Content: []byte("core module")},
		{Name: "cangjie/modules/linux_x86_64_llvm/std/core.bc", Content: []byte("core bitcode")},
		{Name: "cangjie/modules/linux_x86_64_llvm/std/collection.cjo", Content: []byte("collection module")},
	}
}

// defaultDestinations are the container paths of sdkContent under the default ruleset
var defaultDestinations = []string{
	"libcjlint.so",
	"libcangjie-lsp.so",
	"libsecurec.so",
	"libcangjie-runtime.so",
	"tools/bin/cjlint",
	"tools/bin/cjfmt",
	"tools/config/cjlint_rule_list.json",
	"tools/config/sub/exclude_lists.json",
	"modules/linux_x86_64_llvm/std/core.cjo",
	"modules/linux_x86_64_llvm/std/collection.cjo",
}

// without returns contents without the member called name
func without(contents []archiveContent, name string) []archiveContent {
	var out []archiveContent
	for _, c := range contents {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}
