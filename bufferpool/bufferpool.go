// Package bufferpool implements the buffer pool: a fixed-size table of
// in-memory frames that cache page-file pages and mediate every access
// to them through pin/unpin counts.
//
// Grounded on storage_engine/bufferpool (teacher) and
// original_source/assign2/buffer_mgr.c. Pool is not safe for concurrent
// use — per the spec's single-threaded-cooperative model the teacher's
// per-pool RWMutex is dropped here; callers serialize their own access.
package bufferpool

import (
	"github.com/nkharia/storecore/dberr"
	"github.com/nkharia/storecore/internal/xlog"
	"github.com/nkharia/storecore/pagefile"
)

const noPageSentinel = pagefile.NoPage

var log = xlog.For("bufferpool")

type frame struct {
	pageNum  int64
	data     []byte
	fixCount int32
	dirty    bool
	lastUsed uint64
	gen      uint64
}

// Pool is a fixed-size table of frames backed by a single pagefile.Store.
type Pool struct {
	store    *pagefile.Store
	frames   []frame
	index    map[int64]int
	replacer Replacer
	strategy Strategy
	clock    uint64
	readIO   uint64
	writeIO  uint64

	// victimPageNums/victimFixCounts/victimLastUsed are scratch buffers
	// for chooseVictim, sized once to len(frames) and reused on every
	// pin miss instead of being reallocated.
	victimPageNums  []int64
	victimFixCounts []int32
	victimLastUsed  []uint64
}

// Handle is a scoped, borrowed view onto a pinned frame's bytes. It is
// valid only between the Pin call that produced it and the matching
// Unpin call; every other Pool method re-validates the handle's
// generation stamp against the frame's current occupant and returns
// dberr.PageNotFoundInPool if the frame has since been evicted and
// reused for a different page.
type Handle struct {
	pool     *Pool
	frameIdx int
	pageNum  int64
	gen      uint64
}

// PageNum returns the page this handle was pinned for.
func (h *Handle) PageNum() int64 { return h.pageNum }

// Data returns the frame's backing bytes, len == pagefile.PageSize.
// Writes through this slice are only durable once MarkDirty and a
// later flush (ForcePage, ForceFlushPool, or eviction) have run.
func (h *Handle) Data() []byte { return h.pool.frames[h.frameIdx].data }

// NewPool creates a buffer pool of numFrames frames over store, using
// the replacement policy named by strategy (every tag but LRU currently
// degrades to LRU — see Replacer).
func NewPool(store *pagefile.Store, numFrames int, strategy Strategy) (*Pool, error) {
	const op = "bufferpool.NewPool"
	if numFrames <= 0 {
		return nil, dberr.New(op, dberr.InvalidParam)
	}

	frames := make([]frame, numFrames)
	for i := range frames {
		frames[i].pageNum = noPageSentinel
		frames[i].data = make([]byte, pagefile.PageSize)
	}

	p := &Pool{
		store:           store,
		frames:          frames,
		index:           make(map[int64]int, numFrames),
		replacer:        NewReplacer(strategy),
		strategy:        strategy,
		victimPageNums:  make([]int64, numFrames),
		victimFixCounts: make([]int32, numFrames),
		victimLastUsed:  make([]uint64, numFrames),
	}
	log.WithFields(map[string]interface{}{"numFrames": numFrames, "strategy": strategy}).Debug("buffer pool initialized")
	return p, nil
}

func (p *Pool) resolve(op string, h *Handle) (*frame, error) {
	if h == nil || h.pool != p {
		return nil, dberr.New(op, dberr.InvalidParam)
	}
	f := &p.frames[h.frameIdx]
	if f.pageNum != h.pageNum || f.gen != h.gen {
		return nil, dberr.New(op, dberr.PageNotFoundInPool)
	}
	return f, nil
}

func (p *Pool) touch(f *frame) {
	p.clock++
	f.lastUsed = p.clock
}

// Pin brings pageNum into a frame, allocating one more fix on it, and
// returns a Handle for accessing it. If the page is already resident its
// fix count is simply incremented. Otherwise a victim frame is chosen
// (an empty frame, or else the least-recently-used unpinned frame); a
// dirty victim is written back first. Fails with dberr.NoFreeFrame if
// every frame is pinned, or with the page file's own error if reading
// pageNum fails even after the store has been asked to grow to fit it.
func (p *Pool) Pin(pageNum int64) (*Handle, error) {
	const op = "bufferpool.Pin"
	if pageNum < 0 {
		return nil, dberr.New(op, dberr.InvalidParam)
	}

	if idx, ok := p.index[pageNum]; ok {
		f := &p.frames[idx]
		f.fixCount++
		p.touch(f)
		return &Handle{pool: p, frameIdx: idx, pageNum: pageNum, gen: f.gen}, nil
	}

	idx, ok := p.chooseVictim()
	if !ok {
		return nil, dberr.New(op, dberr.NoFreeFrame)
	}
	f := &p.frames[idx]

	if f.pageNum != noPageSentinel {
		if f.dirty {
			if err := p.store.WriteBlock(f.pageNum, f.data); err != nil {
				return nil, dberr.Wrap(op, dberr.WriteFailed, err)
			}
			p.writeIO++
			f.dirty = false
		}
		delete(p.index, f.pageNum)
	}

	if err := p.readPage(pageNum, f.data); err != nil {
		return nil, err
	}

	f.pageNum = pageNum
	f.fixCount = 1
	f.dirty = false
	f.gen++
	p.touch(f)
	p.index[pageNum] = idx

	log.WithFields(map[string]interface{}{"page": pageNum, "frame": idx}).Debug("pinned page")
	return &Handle{pool: p, frameIdx: idx, pageNum: pageNum, gen: f.gen}, nil
}

// readPage reads pageNum into buf, growing the store by exactly one
// EnsureCapacity call and retrying once if the page didn't exist yet —
// the usual path for a manager pinning a page it just decided to append.
func (p *Pool) readPage(pageNum int64, buf []byte) error {
	err := p.store.ReadBlock(pageNum, buf)
	if err != nil {
		if code, ok := dberr.CodeOf(err); ok && code == dberr.NonExistingPage {
			if growErr := p.store.EnsureCapacity(pageNum + 1); growErr != nil {
				return growErr
			}
			err = p.store.ReadBlock(pageNum, buf)
		}
	}
	if err != nil {
		return err
	}
	p.readIO++
	return nil
}

// chooseVictim fills the pool's scratch buffers from the current frame
// table and hands them to the replacer. The buffers are sized once in
// NewPool and reused here rather than reallocated on every pin miss.
func (p *Pool) chooseVictim() (int, bool) {
	for i, f := range p.frames {
		p.victimPageNums[i] = f.pageNum
		p.victimFixCounts[i] = f.fixCount
		p.victimLastUsed[i] = f.lastUsed
	}
	return p.replacer.Victim(p.victimPageNums, p.victimFixCounts, p.victimLastUsed)
}

// Unpin removes one fix from the handle's frame. It is a no-op error,
// dberr.InvalidParam, to unpin a frame already at fixCount 0.
func (p *Pool) Unpin(h *Handle) error {
	const op = "bufferpool.Unpin"
	f, err := p.resolve(op, h)
	if err != nil {
		return err
	}
	if f.fixCount <= 0 {
		return dberr.New(op, dberr.InvalidParam)
	}
	f.fixCount--
	return nil
}

// MarkDirty flags the handle's frame as needing write-back before reuse
// or flush.
func (p *Pool) MarkDirty(h *Handle) error {
	const op = "bufferpool.MarkDirty"
	f, err := p.resolve(op, h)
	if err != nil {
		return err
	}
	f.dirty = true
	return nil
}

// ForcePage writes the handle's frame back to the page file immediately
// if dirty, regardless of fix count.
func (p *Pool) ForcePage(h *Handle) error {
	const op = "bufferpool.ForcePage"
	f, err := p.resolve(op, h)
	if err != nil {
		return err
	}
	if !f.dirty {
		return nil
	}
	if err := p.store.WriteBlock(f.pageNum, f.data); err != nil {
		return dberr.Wrap(op, dberr.WriteFailed, err)
	}
	p.writeIO++
	f.dirty = false
	return nil
}

// ForceFlushPool writes back every dirty, unpinned frame.
func (p *Pool) ForceFlushPool() error {
	const op = "bufferpool.ForceFlushPool"
	for i := range p.frames {
		f := &p.frames[i]
		if f.pageNum == noPageSentinel || !f.dirty || f.fixCount != 0 {
			continue
		}
		if err := p.store.WriteBlock(f.pageNum, f.data); err != nil {
			return dberr.Wrap(op, dberr.WriteFailed, err)
		}
		p.writeIO++
		f.dirty = false
	}
	return nil
}

// Shutdown flushes every dirty unpinned frame and closes the underlying
// store. It fails with dberr.PinnedPagesOnShutdown if any frame still
// has a nonzero fix count — the pool is left unchanged so the caller can
// unpin the offending pages and retry.
func (p *Pool) Shutdown() error {
	const op = "bufferpool.Shutdown"
	for _, f := range p.frames {
		if f.fixCount > 0 {
			return dberr.New(op, dberr.PinnedPagesOnShutdown)
		}
	}
	if err := p.ForceFlushPool(); err != nil {
		return err
	}
	return p.store.Close()
}

// FrameContents returns the page number resident in each frame,
// pagefile.NoPage for an empty frame.
func (p *Pool) FrameContents() []int64 {
	out := make([]int64, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.pageNum
	}
	return out
}

// DirtyFlags returns each frame's dirty bit.
func (p *Pool) DirtyFlags() []bool {
	out := make([]bool, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.dirty
	}
	return out
}

// FixCounts returns each frame's current fix count.
func (p *Pool) FixCounts() []int32 {
	out := make([]int32, len(p.frames))
	for i, f := range p.frames {
		out[i] = f.fixCount
	}
	return out
}

// NumReadIO returns the number of page-file reads performed since the
// pool was created.
func (p *Pool) NumReadIO() uint64 { return p.readIO }

// NumWriteIO returns the number of page-file writes performed since the
// pool was created.
func (p *Pool) NumWriteIO() uint64 { return p.writeIO }

// TotalPages returns the underlying page file's current page count, so
// callers like record.Scan can detect "past the end of the table"
// without relying on Pin's ensureCapacity-and-retry growing the file
// out from under them.
func (p *Pool) TotalPages() int64 { return p.store.TotalPages() }
