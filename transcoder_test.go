// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack_test

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-repack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProgress records progress updates
type countingProgress struct {
	total     int
	increment int
	finished  int

	// onIncrement runs after each increment when set
	onIncrement func()
}

func (p *countingProgress) Start(total int) { p.total = total }
func (p *countingProgress) Finish()         { p.finished++ }

func (p *countingProgress) Increment() {
	p.increment++
	if p.onIncrement != nil {
		p.onIncrement()
	}
}

func TestCopyMemberPreservesMetadata(t *testing.T) {
	src, err := repack.OpenSource(context.Background(), packTarGz(t, sdkContent()))
	require.NoError(t, err)
	defer src.Close()

	progress := &countingProgress{}
	buf := &bytes.Buffer{}
	tc := repack.NewTranscoder(buf, repack.NewConfig(repack.WithProgress(progress)))

	m, ok := src.Lookup("cangjie/tools/bin/cjlint")
	require.True(t, ok)
	copied, err := tc.CopyMember(context.Background(), src, m, "tools/bin/cjlint")
	require.NoError(t, err)
	assert.True(t, copied)
	require.NoError(t, tc.Close())

	assert.Equal(t, int64(1), tc.Copied())
	assert.Equal(t, 1, progress.increment)
	assert.Equal(t, int64(buf.Len()), tc.Written())

	files := readTar(t, buf)
	require.Len(t, files, 1)
	hdr := files[0].Header
	assert.Equal(t, "tools/bin/cjlint", hdr.Name)
	assert.Equal(t, "cjlint binary", string(files[0].Content))
	assert.Equal(t, int64(len("cjlint binary")), hdr.Size)
	assert.Equal(t, m.Mode, hdr.Mode)
	assert.Equal(t, m.Uid, hdr.Uid)
	assert.Equal(t, m.Gid, hdr.Gid)
	assert.Equal(t, m.Uname, hdr.Uname)
	assert.Equal(t, m.Gname, hdr.Gname)
	assert.True(t, m.ModTime.Equal(hdr.ModTime))
}

func TestCopyMemberSubSecondModTime(t *testing.T) {
	src, err := repack.OpenSource(context.Background(), packTarGz(t, sdkContent()))
	require.NoError(t, err)
	defer src.Close()

	buf := &bytes.Buffer{}
	tc := repack.NewTranscoder(buf, repack.NewConfig())
	for _, name := range []string{"cangjie/tools/config/cjlint_rule_list.json", "cangjie/tools/bin/cjlint"} {
		m, ok := src.Lookup(name)
		require.True(t, ok)
		copied, err := tc.CopyMember(context.Background(), src, m, name)
		require.NoError(t, err)
		require.True(t, copied)
	}
	require.NoError(t, tc.Close())

	files := readTar(t, buf)
	require.Len(t, files, 2)
	assert.True(t, subSecondModTime.Equal(files[0].Header.ModTime), "got %v", files[0].Header.ModTime)
	assert.Equal(t, tar.FormatPAX, files[0].Header.Format&tar.FormatPAX)
	assert.True(t, testModTime.Equal(files[1].Header.ModTime))
}

func TestCopyMemberLinkUsesLinkMetadata(t *testing.T) {
	contents := []archiveContent{
		{Name: "sdk/lib/libreal.so.1", Content: []byte("real"), Mode: 0o755},
		{Name: "sdk/lib/libreal.so", Filetype: tar.TypeSymlink, Linktarget: "libreal.so.1", Mode: 0o777},
	}
	src, err := repack.OpenSource(context.Background(), packTarGz(t, contents))
	require.NoError(t, err)
	defer src.Close()

	buf := &bytes.Buffer{}
	tc := repack.NewTranscoder(buf, repack.NewConfig())
	m, _ := src.Lookup("sdk/lib/libreal.so")
	copied, err := tc.CopyMember(context.Background(), src, m, "libreal.so")
	require.NoError(t, err)
	require.True(t, copied)
	require.NoError(t, tc.Close())

	files := readTar(t, buf)
	require.Len(t, files, 1)
	assert.Equal(t, "real", string(files[0].Content))
	assert.Equal(t, int64(0o777), files[0].Header.Mode)
	assert.Equal(t, byte(tar.TypeReg), files[0].Header.Typeflag)
}

func TestCopyMemberExpectedAbsence(t *testing.T) {
	src, err := repack.OpenSource(context.Background(), packTarGz(t, sdkContent()))
	require.NoError(t, err)
	defer src.Close()

	other, err := repack.OpenSource(context.Background(), packTarGz(t, []archiveContent{{Name: "x", Content: []byte("x")}}))
	require.NoError(t, err)
	defer other.Close()

	progress := &countingProgress{}
	buf := &bytes.Buffer{}
	tc := repack.NewTranscoder(buf, repack.NewConfig(repack.WithProgress(progress)))

	dir, _ := src.Lookup("cangjie/tools/")
	for _, m := range []*repack.Member{other.Members()[0], dir, nil} {
		copied, err := tc.CopyMember(context.Background(), src, m, "x")
		assert.NoError(t, err)
		assert.False(t, copied)
	}
	assert.Zero(t, tc.Copied())
	assert.Zero(t, progress.increment)
}

func TestCopyMemberReadFailure(t *testing.T) {
	name := packTarGz(t, sdkContent())
	src, err := repack.OpenSource(context.Background(), name)
	require.NoError(t, err)
	defer src.Close()

	// replace the archive after indexing, so reading content fails
	require.NoError(t, os.WriteFile(name, []byte("garbage"), 0o644))

	tc := repack.NewTranscoder(&bytes.Buffer{}, repack.NewConfig())
	m, _ := src.Lookup("cangjie/envsetup.sh")
	copied, err := tc.CopyMember(context.Background(), src, m, "envsetup.sh")
	assert.Error(t, err)
	assert.False(t, copied)
}

func TestFinalize(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "container.tar")
	data := bytes.Repeat(packTar(t, sdkContent()), 8)
	require.NoError(t, os.WriteFile(container, data, 0o600))

	output := filepath.Join(dir, "out.tar.zst")
	report, err := repack.Finalize(context.Background(), container, output, repack.NewConfig(repack.WithCompressionLevel(19)))
	require.NoError(t, err)

	fi, err := os.Stat(output)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), report.OriginalSize)
	assert.Equal(t, fi.Size(), report.CompressedSize)
	assert.Less(t, report.CompressedSize, report.OriginalSize)
	assert.InDelta(t, float64(report.CompressedSize)/float64(report.OriginalSize)*100, report.Ratio, 0.0001)
	assert.Len(t, report.ContainerDigest, 64)
	assert.Contains(t, report.String(), "bytes")

	assert.Equal(t, data, readTarZst(t, output))

	// no partial files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFinalizeCanceled(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "container.tar")
	require.NoError(t, os.WriteFile(container, packTar(t, sdkContent()), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	output := filepath.Join(dir, "out.tar.zst")
	_, err := repack.Finalize(ctx, container, output, repack.NewConfig())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = os.Stat(output)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFinalizeMissingContainer(t *testing.T) {
	dir := t.TempDir()
	_, err := repack.Finalize(context.Background(), filepath.Join(dir, "missing.tar"), filepath.Join(dir, "out.tar.zst"), repack.NewConfig())
	assert.Error(t, err)
}

func TestFinalizeDigestIsStable(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "container.tar")
	require.NoError(t, os.WriteFile(container, packTar(t, sdkContent()), 0o600))

	first, err := repack.Finalize(context.Background(), container, filepath.Join(dir, "a.tar.zst"), repack.NewConfig(repack.WithCompressionLevel(1)))
	require.NoError(t, err)
	second, err := repack.Finalize(context.Background(), container, filepath.Join(dir, "b.tar.zst"), repack.NewConfig(repack.WithCompressionLevel(22)))
	require.NoError(t, err)
	assert.Equal(t, first.ContainerDigest, second.ContainerDigest)
	assert.Equal(t, first.OriginalSize, second.OriginalSize)
}
