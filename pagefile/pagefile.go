// Package pagefile implements the page file store: a headerless
// sequence of fixed-size blocks backed by a single OS file, with a
// positional cursor and capacity that only ever grows.
//
// It is the bottom layer of the storage engine. bufferpool.Pool is its
// main caller (record.CreateTable also writes a new table's header page
// through a Store directly); pagefile performs no caching and no pinning —
// every ReadBlock/WriteBlock touches the underlying file directly.
package pagefile

import (
	"io"
	"os"

	"github.com/nkharia/storecore/dberr"
	"github.com/nkharia/storecore/internal/xlog"
)

// PageSize is the compile-time page size P referenced throughout the
// spec. All addressable units are multiples of PageSize.
const PageSize = 4096

// NoPage is the sentinel PageNum meaning "no page".
const NoPage int64 = -1

var log = xlog.For("pagefile")

// Store is a single named page file, opened for block-level I/O.
// A Store is not safe for concurrent use — per the spec's concurrency
// model, callers serialize access (the buffer pool above it is itself
// single-threaded-cooperative).
type Store struct {
	name       string
	file       *os.File
	totalPages int64
	curPage    int64
}

// Create creates a new, empty page file containing a single
// zero-filled page. It fails with dberr.FileExists if name already
// exists.
func Create(name string) error {
	const op = "pagefile.Create"

	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return dberr.New(op, dberr.FileExists)
		}
		return dberr.Wrap(op, dberr.FileNotFound, err)
	}
	defer f.Close()

	zero := make([]byte, PageSize)
	if _, err := f.WriteAt(zero, 0); err != nil {
		return dberr.Wrap(op, dberr.WriteFailed, err)
	}

	log.WithField("file", name).Debug("created page file")
	return nil
}

// Open opens an existing page file. The file's byte length must be an
// exact multiple of PageSize; totalPages is derived from that length
// (there is no page-count header — see the Open Question resolution in
// the spec). The cursor starts at page 0.
func Open(name string) (*Store, error) {
	const op = "pagefile.Open"

	f, err := os.OpenFile(name, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dberr.New(op, dberr.FileNotFound)
		}
		return nil, dberr.Wrap(op, dberr.FileHandleNotInit, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberr.Wrap(op, dberr.ReadFailed, err)
	}

	size := info.Size()
	if size%PageSize != 0 {
		f.Close()
		return nil, dberr.New(op, dberr.ReadFailed)
	}

	s := &Store{
		name:       name,
		file:       f,
		totalPages: size / PageSize,
		curPage:    0,
	}
	log.WithFields(map[string]interface{}{"file": name, "totalPages": s.totalPages}).Debug("opened page file")
	return s, nil
}

// Close releases the file handle. The Store must not be used
// afterwards.
func (s *Store) Close() error {
	const op = "pagefile.Close"
	if s.file == nil {
		return dberr.New(op, dberr.FileHandleNotInit)
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return dberr.Wrap(op, dberr.WriteFailed, err)
	}
	return nil
}

// Destroy unlinks the named page file.
func Destroy(name string) error {
	const op = "pagefile.Destroy"
	if err := os.Remove(name); err != nil {
		if os.IsNotExist(err) {
			return dberr.New(op, dberr.FileNotFound)
		}
		return dberr.Wrap(op, dberr.WriteFailed, err)
	}
	return nil
}

// TotalPages returns the current page count.
func (s *Store) TotalPages() int64 { return s.totalPages }

// CurPage returns the cursor's current page number.
func (s *Store) CurPage() int64 { return s.curPage }

func (s *Store) checkBounds(op string, n int64) error {
	if s.file == nil {
		return dberr.New(op, dberr.FileHandleNotInit)
	}
	if n < 0 || n >= s.totalPages {
		return dberr.New(op, dberr.NonExistingPage)
	}
	return nil
}

// ReadBlock copies page n into buf, which must be at least PageSize
// bytes, and advances the cursor to n. Fails with NonExistingPage if n
// is out of [0, totalPages).
func (s *Store) ReadBlock(n int64, buf []byte) error {
	const op = "pagefile.ReadBlock"
	if err := s.checkBounds(op, n); err != nil {
		return err
	}
	if len(buf) < PageSize {
		return dberr.New(op, dberr.InvalidParam)
	}

	if _, err := s.file.ReadAt(buf[:PageSize], n*PageSize); err != nil && err != io.EOF {
		return dberr.Wrap(op, dberr.ReadFailed, err)
	}
	s.curPage = n
	return nil
}

// WriteBlock overwrites page n with buf. It does not grow the file —
// n must already be within bounds.
func (s *Store) WriteBlock(n int64, buf []byte) error {
	const op = "pagefile.WriteBlock"
	if err := s.checkBounds(op, n); err != nil {
		return err
	}
	if len(buf) < PageSize {
		return dberr.New(op, dberr.InvalidParam)
	}

	if _, err := s.file.WriteAt(buf[:PageSize], n*PageSize); err != nil {
		return dberr.Wrap(op, dberr.WriteFailed, err)
	}
	s.curPage = n
	return nil
}

// AppendEmptyBlock appends one zero-filled page and grows totalPages by
// one.
func (s *Store) AppendEmptyBlock() error {
	const op = "pagefile.AppendEmptyBlock"
	if s.file == nil {
		return dberr.New(op, dberr.FileHandleNotInit)
	}

	zero := make([]byte, PageSize)
	if _, err := s.file.WriteAt(zero, s.totalPages*PageSize); err != nil {
		return dberr.Wrap(op, dberr.WriteFailed, err)
	}
	s.totalPages++
	return nil
}

// EnsureCapacity appends zero-filled pages until totalPages >= k.
func (s *Store) EnsureCapacity(k int64) error {
	for s.totalPages < k {
		if err := s.AppendEmptyBlock(); err != nil {
			return err
		}
	}
	return nil
}

// ReadFirst reads page 0.
func (s *Store) ReadFirst(buf []byte) error { return s.ReadBlock(0, buf) }

// ReadLast reads the last page.
func (s *Store) ReadLast(buf []byte) error { return s.ReadBlock(s.totalPages-1, buf) }

// ReadCurrent re-reads the page at the cursor.
func (s *Store) ReadCurrent(buf []byte) error { return s.ReadBlock(s.curPage, buf) }

// ReadNext reads the page following the cursor.
func (s *Store) ReadNext(buf []byte) error { return s.ReadBlock(s.curPage+1, buf) }

// ReadPrevious reads the page preceding the cursor.
func (s *Store) ReadPrevious(buf []byte) error { return s.ReadBlock(s.curPage-1, buf) }
