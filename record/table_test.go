package record

import (
	"path/filepath"
	"testing"

	"github.com/nkharia/storecore/dberr"
	"github.com/nkharia/storecore/internal/config"
	"github.com/nkharia/storecore/record/predicate"
	"github.com/stretchr/testify/require"
)

func schemaABC() *Schema {
	return &Schema{
		Attrs: []Attribute{
			{Name: "a", Type: TypeInt},
			{Name: "b", Type: TypeString, Length: 4},
			{Name: "c", Type: TypeInt},
		},
		KeyAttrs: []int{0},
	}
}

func mustInsert(t *testing.T, tbl *Table, a int32, b string, c int32) RID {
	t.Helper()
	s := tbl.Schema()
	rec := NewRecord(s)
	require.NoError(t, SetAttr(rec, s, 0, IntValue(a)))
	require.NoError(t, SetAttr(rec, s, 1, StringValue(b)))
	require.NoError(t, SetAttr(rec, s, 2, IntValue(c)))
	require.NoError(t, tbl.InsertRecord(rec))
	return rec.ID
}

func TestInsertGetUpdateDelete(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s := schemaABC()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	rid := mustInsert(t, tbl, 1, "aaaa", 10)
	require.Equal(t, 1, tbl.GetNumTuples())

	got, err := tbl.GetRecord(rid)
	require.NoError(t, err)
	v, err := GetAttr(got, s, 2)
	require.NoError(t, err)
	require.EqualValues(t, 10, v.Int)

	require.NoError(t, SetAttr(got, s, 2, IntValue(99)))
	require.NoError(t, tbl.UpdateRecord(got))

	got2, err := tbl.GetRecord(rid)
	require.NoError(t, err)
	v, err = GetAttr(got2, s, 2)
	require.NoError(t, err)
	require.EqualValues(t, 99, v.Int)

	require.NoError(t, tbl.DeleteRecord(rid))
	require.Equal(t, 0, tbl.GetNumTuples())

	_, err = tbl.GetRecord(rid)
	require.Error(t, err)
	code, ok := dberr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, dberr.NoSuchTuple, code)
}

func TestDeleteNonLiveSlotRejected(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s := schemaABC()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	rid := mustInsert(t, tbl, 1, "aaaa", 10)
	require.NoError(t, tbl.DeleteRecord(rid))

	err = tbl.DeleteRecord(rid)
	require.Error(t, err)
	code, ok := dberr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, dberr.NoSuchTuple, code)
}

func TestUpdateTombstonedSlotRejected(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s := schemaABC()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	rid := mustInsert(t, tbl, 1, "aaaa", 10)
	rec, err := tbl.GetRecord(rid)
	require.NoError(t, err)
	require.NoError(t, tbl.DeleteRecord(rid))

	err = tbl.UpdateRecord(rec)
	require.Error(t, err)
	code, ok := dberr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, dberr.NoSuchTuple, code)
}

func TestScanWithPredicateAndWithout(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s := schemaABC()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	mustInsert(t, tbl, 1, "aaaa", 10)
	rid2 := mustInsert(t, tbl, 2, "bbbb", 20)
	mustInsert(t, tbl, 3, "cccc", 30)

	// c < 25
	pred := predicate.Lt(predicate.AttrRef(2), predicate.Const(IntValue(25)))
	scan := StartScan(tbl, pred)
	var got []int32
	for {
		rec, err := scan.Next()
		if err != nil {
			code, ok := dberr.CodeOf(err)
			require.True(t, ok)
			require.Equal(t, dberr.NoMoreTuples, code)
			break
		}
		v, err := GetAttr(rec, s, 0)
		require.NoError(t, err)
		got = append(got, v.Int)
	}
	require.Equal(t, []int32{1, 2}, got)
	require.NoError(t, scan.CloseScan())

	// no predicate returns all three.
	scan = StartScan(tbl, nil)
	got = nil
	for {
		rec, err := scan.Next()
		if err != nil {
			break
		}
		v, err := GetAttr(rec, s, 0)
		require.NoError(t, err)
		got = append(got, v.Int)
	}
	require.Equal(t, []int32{1, 2, 3}, got)

	// delete (2,...) and rescan; remaining two returned.
	require.NoError(t, tbl.DeleteRecord(rid2))
	scan = StartScan(tbl, nil)
	got = nil
	for {
		rec, err := scan.Next()
		if err != nil {
			break
		}
		v, err := GetAttr(rec, s, 0)
		require.NoError(t, err)
		got = append(got, v.Int)
	}
	require.Equal(t, []int32{1, 3}, got)
}

func TestCloseAndReopenPreservesTuples(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s := schemaABC()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)

	rid := mustInsert(t, tbl, 7, "wxyz", 70)
	require.NoError(t, tbl.CloseTable())

	reopened, err := OpenTable(name)
	require.NoError(t, err)
	defer reopened.CloseTable()

	require.Equal(t, 1, reopened.GetNumTuples())
	rec, err := reopened.GetRecord(rid)
	require.NoError(t, err)
	v, err := GetAttr(rec, s, 2)
	require.NoError(t, err)
	require.EqualValues(t, 70, v.Int)
}

func TestOpenTableWithConfigUsesConfiguredFrameCount(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	require.NoError(t, CreateTable(name, schemaABC()))

	cfg := config.Default()
	cfg.BufferPool.NumFrames = 3
	cfg.BufferPool.Strategy = "FIFO"

	tbl, err := OpenTableWithConfig(name, cfg)
	require.NoError(t, err)
	defer tbl.CloseTable()

	require.Len(t, tbl.pool.FrameContents(), 3)
}

func TestOpenTableDefaultsToTenFrames(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	require.NoError(t, CreateTable(name, schemaABC()))

	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	require.Len(t, tbl.pool.FrameContents(), 10)
}

func TestInsertAcrossPages(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s := schemaABC()
	require.NoError(t, CreateTable(name, s))
	tbl, err := OpenTable(name)
	require.NoError(t, err)
	defer tbl.CloseTable()

	const n = 500
	rids := make([]RID, n)
	for i := 0; i < n; i++ {
		rids[i] = mustInsert(t, tbl, int32(i), "aaaa", int32(i*2))
	}
	require.Equal(t, n, tbl.GetNumTuples())

	for i, rid := range rids {
		rec, err := tbl.GetRecord(rid)
		require.NoError(t, err)
		v, err := GetAttr(rec, s, 0)
		require.NoError(t, err)
		require.EqualValues(t, i, v.Int)
	}
}
