package bufferpool

import (
	"path/filepath"
	"testing"

	"github.com/nkharia/storecore/dberr"
	"github.com/nkharia/storecore/pagefile"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, numPages int64) *pagefile.Store {
	t.Helper()
	name := filepath.Join(t.TempDir(), "t.db")
	require.NoError(t, pagefile.Create(name))
	s, err := pagefile.Open(name)
	require.NoError(t, err)
	require.NoError(t, s.EnsureCapacity(numPages))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPinUnpinCounters(t *testing.T) {
	s := openStore(t, 5)
	p, err := NewPool(s, 3, LRU)
	require.NoError(t, err)

	h0, err := p.Pin(0)
	require.NoError(t, err)
	require.EqualValues(t, []int32{1, 0, 0}, p.FixCounts())

	h1, err := p.Pin(1)
	require.NoError(t, err)
	require.EqualValues(t, []int32{1, 1, 0}, p.FixCounts())

	require.NoError(t, p.Unpin(h0))
	require.EqualValues(t, []int32{0, 1, 0}, p.FixCounts())

	require.NoError(t, p.Unpin(h1))
	require.EqualValues(t, []int32{0, 0, 0}, p.FixCounts())
}

func TestEvictsOldestUnpinnedFrame(t *testing.T) {
	s := openStore(t, 5)
	p, err := NewPool(s, 3, LRU)
	require.NoError(t, err)

	h0, err := p.Pin(0)
	require.NoError(t, err)
	h1, err := p.Pin(1)
	require.NoError(t, err)
	h2, err := p.Pin(2)
	require.NoError(t, err)

	require.NoError(t, p.Unpin(h0))
	require.NoError(t, p.Unpin(h1))
	require.NoError(t, p.Unpin(h2))

	// Re-pin page 1 so it becomes more recently used than 0 and 2.
	h1b, err := p.Pin(1)
	require.NoError(t, err)
	require.NoError(t, p.Unpin(h1b))

	// Page 0 is now the least-recently-used unpinned frame.
	_, err = p.Pin(3)
	require.NoError(t, err)

	require.NotContains(t, p.FrameContents(), int64(0))
	require.Contains(t, p.FrameContents(), int64(1))
	require.Contains(t, p.FrameContents(), int64(2))
	require.Contains(t, p.FrameContents(), int64(3))
}

func TestDirtyVictimWrittenBackExactlyOnce(t *testing.T) {
	s := openStore(t, 5)
	p, err := NewPool(s, 1, LRU)
	require.NoError(t, err)

	h0, err := p.Pin(0)
	require.NoError(t, err)
	copy(h0.Data(), []byte("dirty-page"))
	require.NoError(t, p.MarkDirty(h0))
	require.NoError(t, p.Unpin(h0))

	require.EqualValues(t, 0, p.NumWriteIO())

	_, err = p.Pin(1)
	require.NoError(t, err)
	require.EqualValues(t, 1, p.NumWriteIO())

	buf := make([]byte, pagefile.PageSize)
	require.NoError(t, s.ReadBlock(0, buf))
	require.Equal(t, "dirty-page", string(buf[:10]))
}

func TestNoFreeFrameWhenAllPinned(t *testing.T) {
	s := openStore(t, 5)
	p, err := NewPool(s, 2, LRU)
	require.NoError(t, err)

	_, err = p.Pin(0)
	require.NoError(t, err)
	_, err = p.Pin(1)
	require.NoError(t, err)

	_, err = p.Pin(2)
	require.Error(t, err)
	code, ok := dberr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, dberr.NoFreeFrame, code)
}

func TestShutdownFailsWithPinsThenSucceeds(t *testing.T) {
	s := openStore(t, 5)
	p, err := NewPool(s, 2, LRU)
	require.NoError(t, err)

	h0, err := p.Pin(0)
	require.NoError(t, err)

	err = p.Shutdown()
	require.Error(t, err)
	code, ok := dberr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, dberr.PinnedPagesOnShutdown, code)

	require.NoError(t, p.Unpin(h0))
	require.NoError(t, p.Shutdown())
}

func TestHandleStaleAfterEviction(t *testing.T) {
	s := openStore(t, 5)
	p, err := NewPool(s, 1, LRU)
	require.NoError(t, err)

	h0, err := p.Pin(0)
	require.NoError(t, err)
	require.NoError(t, p.Unpin(h0))

	_, err = p.Pin(1)
	require.NoError(t, err)

	err = p.MarkDirty(h0)
	require.Error(t, err)
	code, ok := dberr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, dberr.PageNotFoundInPool, code)
}

func TestForceFlushPoolSkipsPinnedFrames(t *testing.T) {
	s := openStore(t, 5)
	p, err := NewPool(s, 2, LRU)
	require.NoError(t, err)

	h0, err := p.Pin(0)
	require.NoError(t, err)
	copy(h0.Data(), []byte("pinned-dirty"))
	require.NoError(t, p.MarkDirty(h0))

	require.NoError(t, p.ForceFlushPool())
	require.EqualValues(t, 0, p.NumWriteIO())
	require.True(t, p.DirtyFlags()[0])

	require.NoError(t, p.Unpin(h0))
	require.NoError(t, p.ForceFlushPool())
	require.EqualValues(t, 1, p.NumWriteIO())
	require.False(t, p.DirtyFlags()[0])
}
