package record

import (
	"github.com/nkharia/storecore/dberr"
	"github.com/nkharia/storecore/record/predicate"
)

// Scan is an explicit sequential-scan cursor over a table's data pages,
// replacing the original source's next() (which conflated "first call"
// detection with "count == 0" and misbehaved once a predicate rejected
// every record on the first page). Cursor state is set up entirely in
// StartScan; Next only ever advances it.
type Scan struct {
	table     *Table
	page      int64
	slot      int
	scanned   uint32
	predicate predicate.Expr
	done      bool
}

// StartScan begins a sequential scan of table, optionally filtered by
// predicate (nil matches every record).
func StartScan(table *Table, pred predicate.Expr) *Scan {
	return &Scan{
		table:     table,
		page:      1,
		slot:      0,
		scanned:   0,
		predicate: pred,
	}
}

// Next advances the cursor to the next live record matching the scan's
// predicate and returns it. Once the table is exhausted it returns a nil
// record and an error carrying dberr.NoMoreTuples.
func (s *Scan) Next() (rec *Record, err error) {
	const op = "record.Scan.Next"
	if s.done {
		return nil, dberr.New(op, dberr.NoMoreTuples)
	}
	if s.table.numTuples == 0 {
		s.done = true
		return nil, dberr.New(op, dberr.NoMoreTuples)
	}

	for s.scanned <= s.table.numTuples {
		if s.page >= s.table.pool.TotalPages() {
			s.done = true
			return nil, dberr.New(op, dberr.NoMoreTuples)
		}

		h, perr := s.table.pool.Pin(s.page)
		if perr != nil {
			if code, ok := dberr.CodeOf(perr); ok && code == dberr.NonExistingPage {
				s.done = true
				return nil, dberr.New(op, dberr.NoMoreTuples)
			}
			return nil, perr
		}

		marker := s.table.slotMarker(h.Data(), s.slot)
		curPage, curSlot := s.page, s.slot

		s.slot++
		if s.slot >= s.table.slotsPerPage {
			s.slot = 0
			s.page++
		}

		if marker != markerLive {
			if unErr := s.table.pool.Unpin(h); unErr != nil {
				return nil, unErr
			}
			continue
		}

		rec = &Record{ID: RID{Page: curPage, Slot: curSlot}, Data: make([]byte, s.table.recordSize)}
		copy(rec.Data, s.table.slotPayload(h.Data(), curSlot))
		s.scanned++

		if unErr := s.table.pool.Unpin(h); unErr != nil {
			return nil, unErr
		}

		matched := true
		if s.predicate != nil {
			v, evalErr := predicate.Eval(s.predicate, boundRecord{rec: rec, schema: s.table.schema})
			if evalErr != nil {
				return nil, evalErr
			}
			if v.Type != TypeBool {
				return nil, dberr.New(op, dberr.TypeMismatch)
			}
			matched = v.Bool
		}

		if matched {
			return rec, nil
		}
	}

	s.done = true
	return nil, dberr.New(op, dberr.NoMoreTuples)
}

// CloseScan releases scan state. No frame is held between Next calls, so
// there is nothing left to unpin; this exists to match the spec's
// startScan/next/closeScan triad and to make the cursor unusable
// afterwards.
func (s *Scan) CloseScan() error {
	s.done = true
	return nil
}
