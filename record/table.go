package record

import (
	"github.com/nkharia/storecore/bufferpool"
	"github.com/nkharia/storecore/dberr"
	"github.com/nkharia/storecore/internal/config"
	"github.com/nkharia/storecore/internal/xlog"
	"github.com/nkharia/storecore/pagefile"
)

var log = xlog.For("record")

const (
	markerEmpty = 0
	markerLive  = '#'
	markerTomb  = '$'
)

// Table is an open table file: its schema, live tuple count, insertion
// hint, and the dedicated buffer pool backing it.
type Table struct {
	name          string
	schema        *Schema
	numTuples     uint32
	firstFreePage uint32
	recordSize    int
	slotSize      int
	slotsPerPage  int
	pool          *bufferpool.Pool
}

// Schema returns the table's schema. The caller must not mutate it.
func (t *Table) Schema() *Schema { return t.schema }

// Name returns the table's underlying file name.
func (t *Table) Name() string { return t.name }

// GetNumTuples returns the cached live-tuple count.
func (t *Table) GetNumTuples() int { return int(t.numTuples) }

// CreateTable creates a new table file named name with the given
// schema: a page-file with one header page (page 0) encoding
// numTuples=0, firstFreePage=1, recordSize, and the attribute/key
// descriptors.
func CreateTable(name string, schema *Schema) error {
	const op = "record.CreateTable"
	if err := pagefile.Create(name); err != nil {
		return err
	}

	store, err := pagefile.Open(name)
	if err != nil {
		return err
	}
	defer store.Close()

	header := encodeSchemaHeader(0, 1, schema)
	if len(header) > pagefile.PageSize {
		return dberr.New(op, dberr.InvalidParam)
	}
	page := make([]byte, pagefile.PageSize)
	copy(page, header)

	if err := store.WriteBlock(0, page); err != nil {
		return err
	}

	log.WithField("table", name).Info("created table")
	return nil
}

// OpenTable opens an existing table using config.Default()'s buffer-pool
// tunables (ten LRU frames). Use OpenTableWithConfig to size or steer the
// table's pool from a loaded config.Config instead.
func OpenTable(name string) (*Table, error) {
	return OpenTableWithConfig(name, config.Default())
}

// OpenTableWithConfig opens an existing table: pins page 0, decodes the
// header, unpins, and allocates a dedicated buffer pool sized and
// steered by cfg.BufferPool.NumFrames and cfg.BufferPool.Strategy (as
// parsed by bufferpool.ParseStrategy).
func OpenTableWithConfig(name string, cfg *config.Config) (*Table, error) {
	const op = "record.OpenTableWithConfig"

	store, err := pagefile.Open(name)
	if err != nil {
		return nil, err
	}

	strategy := bufferpool.ParseStrategy(cfg.BufferPool.Strategy)
	pool, err := bufferpool.NewPool(store, cfg.BufferPool.NumFrames, strategy)
	if err != nil {
		store.Close()
		return nil, err
	}

	h, err := pool.Pin(0)
	if err != nil {
		return nil, err
	}
	numTuples, firstFreePage, schema, err := decodeSchemaHeader(h.Data())
	if err != nil {
		pool.Unpin(h)
		return nil, err
	}
	if err := pool.Unpin(h); err != nil {
		return nil, err
	}

	recordSize := schema.RecordSize()
	slotSize := recordSize + 1
	if slotSize <= 0 {
		return nil, dberr.New(op, dberr.InvalidParam)
	}

	t := &Table{
		name:          name,
		schema:        schema,
		numTuples:     numTuples,
		firstFreePage: firstFreePage,
		recordSize:    recordSize,
		slotSize:      slotSize,
		slotsPerPage:  pagefile.PageSize / slotSize,
		pool:          pool,
	}
	log.WithFields(map[string]interface{}{"table": name, "numTuples": numTuples}).Info("opened table")
	return t, nil
}

// CloseTable writes back the current tuple count to page 0, flushes and
// shuts down the table's buffer pool. Unlike the original source's
// closeTable (which has a stray `==` where an assignment belongs), every
// step here runs unconditionally on the happy path: pin, overwrite,
// mark dirty, unpin, then shut the pool down.
func (t *Table) CloseTable() error {
	const op = "record.CloseTable"

	h, err := t.pool.Pin(0)
	if err != nil {
		return err
	}
	header := encodeSchemaHeader(t.numTuples, t.firstFreePage, t.schema)
	if len(header) > len(h.Data()) {
		t.pool.Unpin(h)
		return dberr.New(op, dberr.InvalidParam)
	}
	copy(h.Data(), header)

	if err := t.pool.MarkDirty(h); err != nil {
		t.pool.Unpin(h)
		return err
	}
	if err := t.pool.Unpin(h); err != nil {
		return err
	}

	return t.pool.Shutdown()
}

// DeleteTable unlinks the underlying table file. The table must not be
// open.
func DeleteTable(name string) error {
	return pagefile.Destroy(name)
}

func (t *Table) slotMarker(data []byte, slot int) byte {
	return data[slot*t.slotSize]
}

func (t *Table) slotPayload(data []byte, slot int) []byte {
	start := slot*t.slotSize + 1
	return data[start : start+t.recordSize]
}

// InsertRecord finds the first non-live slot starting at firstFreePage,
// writes rec's payload there with the live marker, and stores the new
// RID in rec.ID.
// If no such slot exists on the starting page it advances to the next
// page, relying on the buffer pool's ensureCapacity-and-retry to grow
// the file when that page does not exist yet.
func (t *Table) InsertRecord(rec *Record) error {
	const op = "record.InsertRecord"
	if len(rec.Data) != t.recordSize {
		return dberr.New(op, dberr.InvalidParam)
	}

	page := int64(t.firstFreePage)
	slot := -1
	var h *bufferpool.Handle

	for slot == -1 {
		var err error
		h, err = t.pool.Pin(page)
		if err != nil {
			return err
		}
		for i := 0; i < t.slotsPerPage; i++ {
			if t.slotMarker(h.Data(), i) != markerLive {
				slot = i
				break
			}
		}
		if slot == -1 {
			if err := t.pool.Unpin(h); err != nil {
				return err
			}
			page++
		}
	}

	data := h.Data()
	data[slot*t.slotSize] = markerLive
	copy(t.slotPayload(data, slot), rec.Data)

	if err := t.pool.MarkDirty(h); err != nil {
		t.pool.Unpin(h)
		return err
	}
	if err := t.pool.Unpin(h); err != nil {
		return err
	}

	t.firstFreePage = uint32(page)
	t.numTuples++
	rec.ID = RID{Page: page, Slot: slot}
	return nil
}

// DeleteRecord tombstones the slot at id. Deleting an already-empty or
// already-tombstoned slot is rejected with dberr.NoSuchTuple.
func (t *Table) DeleteRecord(id RID) error {
	const op = "record.DeleteRecord"
	if err := t.checkRID(id); err != nil {
		return err
	}

	h, err := t.pool.Pin(id.Page)
	if err != nil {
		return err
	}
	if t.slotMarker(h.Data(), id.Slot) != markerLive {
		t.pool.Unpin(h)
		return dberr.New(op, dberr.NoSuchTuple)
	}
	h.Data()[id.Slot*t.slotSize] = markerTomb

	if err := t.pool.MarkDirty(h); err != nil {
		t.pool.Unpin(h)
		return err
	}
	if err := t.pool.Unpin(h); err != nil {
		return err
	}
	t.numTuples--
	return nil
}

// UpdateRecord overwrites the payload bytes at rec.ID, leaving the
// occupancy marker untouched. Updating a tombstoned or empty slot is a
// corruption condition and is rejected with dberr.NoSuchTuple.
func (t *Table) UpdateRecord(rec *Record) error {
	const op = "record.UpdateRecord"
	if len(rec.Data) != t.recordSize {
		return dberr.New(op, dberr.InvalidParam)
	}
	if err := t.checkRID(rec.ID); err != nil {
		return err
	}

	h, err := t.pool.Pin(rec.ID.Page)
	if err != nil {
		return err
	}
	if t.slotMarker(h.Data(), rec.ID.Slot) != markerLive {
		t.pool.Unpin(h)
		return dberr.New(op, dberr.NoSuchTuple)
	}
	copy(t.slotPayload(h.Data(), rec.ID.Slot), rec.Data)

	if err := t.pool.MarkDirty(h); err != nil {
		t.pool.Unpin(h)
		return err
	}
	return t.pool.Unpin(h)
}

// GetRecord reads the payload at id into a freshly allocated Record.
// Fails with dberr.NoSuchTuple if the slot is not live.
func (t *Table) GetRecord(id RID) (*Record, error) {
	const op = "record.GetRecord"
	if err := t.checkRID(id); err != nil {
		return nil, err
	}

	h, err := t.pool.Pin(id.Page)
	if err != nil {
		return nil, err
	}
	defer t.pool.Unpin(h)

	if t.slotMarker(h.Data(), id.Slot) != markerLive {
		return nil, dberr.New(op, dberr.NoSuchTuple)
	}

	out := &Record{ID: id, Data: make([]byte, t.recordSize)}
	copy(out.Data, t.slotPayload(h.Data(), id.Slot))
	return out, nil
}

func (t *Table) checkRID(id RID) error {
	const op = "record.checkRID"
	if id.Page < 1 || id.Slot < 0 || id.Slot >= t.slotsPerPage {
		return dberr.New(op, dberr.InvalidParam)
	}
	return nil
}
