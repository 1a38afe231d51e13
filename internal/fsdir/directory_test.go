package fsdir

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"xipfs/internal/common"
	"xipfs/internal/flash"
	"xipfs/internal/pagebuf"
)

// newTestDirectory uses a page size large enough to hold one header
// plus a little file data, matching the real constraint that a
// record's header never crosses a page boundary.
func newTestDirectory(t *testing.T, pages int) (*flash.Device, *Directory) {
	t.Helper()
	dir := t.TempDir()
	dev, err := flash.Open(filepath.Join(dir, "flash.img"), 0, flash.Geometry{
		PageSize: 512, PageCount: pages, WriteBlockSize: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	buf := pagebuf.New(dev)
	return dev, New(dev, buf)
}

func TestHeadEmptyDirectory(t *testing.T) {
	_, d := newTestDirectory(t, 4)
	head, err := d.Head()
	require.NoError(t, err)
	require.Nil(t, head)
}

func TestNewFileThenHead(t *testing.T) {
	_, d := newTestDirectory(t, 4)
	rec, err := d.NewFile("/a.txt", 10, false)
	require.NoError(t, err)
	require.Equal(t, 0, rec.Addr)

	head, err := d.Head()
	require.NoError(t, err)
	require.NotNil(t, head)
	require.Equal(t, "/a.txt", head.Path)
	require.Equal(t, uint32(512), head.Reserved)
}

func TestNewFileChaining(t *testing.T) {
	dev, d := newTestDirectory(t, 4)
	a, err := d.NewFile("/a.txt", 10, false)
	require.NoError(t, err)
	b, err := d.NewFile("/b.txt", 10, false)
	require.NoError(t, err)
	require.Equal(t, a.Addr+dev.PageSize, b.Addr)

	head, err := d.Head()
	require.NoError(t, err)
	nxt, err := d.Next(head)
	require.NoError(t, err)
	require.NotNil(t, nxt)
	require.Equal(t, "/b.txt", nxt.Path)

	end, err := d.Next(nxt)
	require.NoError(t, err)
	require.Nil(t, end)
}

func TestNewFileFillsMountBecomesSelfLoop(t *testing.T) {
	dev, d := newTestDirectory(t, 2)
	_, err := d.NewFile("/a.txt", dev.PageSize, false)
	require.NoError(t, err)
	b, err := d.NewFile("/b.txt", dev.PageSize, false)
	require.NoError(t, err)
	require.Equal(t, b.Addr, int(b.Next))
	require.True(t, b.IsTerminal())

	_, err = d.NewFile("/c.txt", dev.PageSize, false)
	require.ErrorIs(t, err, common.ErrFull)

	head, err := d.Head()
	require.NoError(t, err)
	require.Equal(t, "/a.txt", head.Path)
	tail, err := d.Tail(head)
	require.NoError(t, err)
	require.Equal(t, "/b.txt", tail.Path)
}

func TestNewFileNoSpace(t *testing.T) {
	dev, d := newTestDirectory(t, 2)
	_, err := d.NewFile("/a.txt", dev.PageSize, false)
	require.NoError(t, err)
	_, err = d.NewFile("/b.txt", 2*dev.PageSize, false)
	require.ErrorIs(t, err, common.ErrNoSpace)
}

func TestFreePagesAccounting(t *testing.T) {
	dev, d := newTestDirectory(t, 4)
	free, err := d.FreePages()
	require.NoError(t, err)
	require.Equal(t, 4, free)

	_, err = d.NewFile("/a.txt", dev.PageSize, false)
	require.NoError(t, err)
	free, err = d.FreePages()
	require.NoError(t, err)
	require.Equal(t, 3, free)
}

func TestRemoveMiddleConsolidates(t *testing.T) {
	dev, d := newTestDirectory(t, 4)
	a, err := d.NewFile("/a.txt", dev.PageSize, false)
	require.NoError(t, err)
	require.NoError(t, d.buf.Write(a.DataAddr(), []byte("AAAA")))
	require.NoError(t, d.buf.Flush())

	b, err := d.NewFile("/b.txt", dev.PageSize, false)
	require.NoError(t, err)
	require.NoError(t, d.buf.Write(b.DataAddr(), []byte("BBBB")))
	require.NoError(t, d.buf.Flush())

	c, err := d.NewFile("/c.txt", dev.PageSize, false)
	require.NoError(t, err)
	require.NoError(t, d.buf.Write(c.DataAddr(), []byte("CCCC")))
	require.NoError(t, d.buf.Flush())

	require.NoError(t, d.Remove(b))

	head, err := d.Head()
	require.NoError(t, err)
	require.Equal(t, "/a.txt", head.Path)
	require.Equal(t, a.Addr, head.Addr)

	nxt, err := d.Next(head)
	require.NoError(t, err)
	require.NotNil(t, nxt)
	require.Equal(t, "/c.txt", nxt.Path)
	require.Equal(t, b.Addr, nxt.Addr)

	out := make([]byte, 4)
	require.NoError(t, d.buf.Read(out, nxt.DataAddr(), 4))
	require.Equal(t, []byte("CCCC"), out)

	end, err := d.Next(nxt)
	require.NoError(t, err)
	require.Nil(t, end)

	free, err := d.FreePages()
	require.NoError(t, err)
	require.Equal(t, 2, free)
}

func TestRemoveTailSelfLoopShrinksDirectory(t *testing.T) {
	dev, d := newTestDirectory(t, 2)
	a, err := d.NewFile("/a.txt", dev.PageSize, false)
	require.NoError(t, err)
	b, err := d.NewFile("/b.txt", dev.PageSize, false)
	require.NoError(t, err)
	require.True(t, b.IsTerminal())

	require.NoError(t, d.Remove(a))

	head, err := d.Head()
	require.NoError(t, err)
	require.Equal(t, "/b.txt", head.Path)
	require.Equal(t, a.Addr, head.Addr)
	require.True(t, head.IsTerminal())
}

func TestRenameAllPrefix(t *testing.T) {
	dev, d := newTestDirectory(t, 4)
	_, err := d.NewFile("/old/a.txt", dev.PageSize, false)
	require.NoError(t, err)
	_, err = d.NewFile("/old/b.txt", dev.PageSize, false)
	require.NoError(t, err)
	_, err = d.NewFile("/keep.txt", dev.PageSize, false)
	require.NoError(t, err)

	n, err := d.RenameAll("/old/", "/new/")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	head, err := d.Head()
	require.NoError(t, err)
	require.Equal(t, "/new/a.txt", head.Path)
	nxt, err := d.Next(head)
	require.NoError(t, err)
	require.Equal(t, "/new/b.txt", nxt.Path)
	last, err := d.Next(nxt)
	require.NoError(t, err)
	require.Equal(t, "/keep.txt", last.Path)
}

func TestFormatErasesEverything(t *testing.T) {
	dev, d := newTestDirectory(t, 4)
	_, err := d.NewFile("/a.txt", dev.PageSize, false)
	require.NoError(t, err)

	require.NoError(t, d.Format())

	head, err := d.Head()
	require.NoError(t, err)
	require.Nil(t, head)
	for p := 0; p < dev.PageCount; p++ {
		require.True(t, dev.IsErasedPage(p))
	}
}
