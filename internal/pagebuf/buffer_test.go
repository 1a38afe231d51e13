package pagebuf

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"xipfs/internal/flash"
)

func newTestBuffer(t *testing.T) (*flash.Device, *Buffer) {
	t.Helper()
	dir := t.TempDir()
	dev, err := flash.Open(filepath.Join(dir, "flash.img"), 0, flash.Geometry{PageSize: 256, PageCount: 4, WriteBlockSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev, New(dev)
}

func TestWriteThenReadBeforeFlush(t *testing.T) {
	_, buf := newTestBuffer(t)
	require.NoError(t, buf.Write(10, []byte("hi")))
	out := make([]byte, 2)
	require.NoError(t, buf.Read(out, 10, 2))
	require.Equal(t, []byte("hi"), out)
}

func TestFlushCommitsToDevice(t *testing.T) {
	dev, buf := newTestBuffer(t)
	require.NoError(t, buf.Write(10, []byte("hi")))
	require.NoError(t, buf.Flush())
	require.True(t, buf.IsEmpty())
	require.Equal(t, []byte("hi"), dev.ReadAt(10, 2))
}

func TestPageChangeImplicitlyFlushes(t *testing.T) {
	dev, buf := newTestBuffer(t)
	require.NoError(t, buf.Write(10, []byte("a")))
	// Writing to a different page must flush page 0 first.
	require.NoError(t, buf.Write(dev.PageSize+10, []byte("b")))
	require.Equal(t, []byte("a"), dev.ReadAt(10, 1))
	require.NoError(t, buf.Flush())
	require.Equal(t, []byte("b"), dev.ReadAt(dev.PageSize+10, 1))
}

func TestFlushNoOpWhenClean(t *testing.T) {
	_, buf := newTestBuffer(t)
	require.True(t, buf.IsEmpty())
	require.NoError(t, buf.Flush())
	require.True(t, buf.IsEmpty())
}

func TestReadLoadsPageWhenEmpty(t *testing.T) {
	dev, buf := newTestBuffer(t)
	require.NoError(t, dev.WriteUnaligned(5, []byte{0x42}))
	out := make([]byte, 1)
	require.NoError(t, buf.Read(out, 5, 1))
	require.Equal(t, byte(0x42), out[0])
}
