// Package record implements the record manager: table files with a
// schema header page, fixed-slot data pages, CRUD by record id, and
// sequential predicate scans, all layered on top of bufferpool.Pool.
package record

import (
	"encoding/binary"

	"github.com/nkharia/storecore/dberr"
	"github.com/nkharia/storecore/record/predicate"
)

// DataType tags an attribute's storage representation. Aliased from
// predicate.DataType so the evaluator's Value and the record layout
// agree on type tags without predicate depending back on record.
type DataType = predicate.DataType

const (
	TypeInt    = predicate.TypeInt
	TypeFloat  = predicate.TypeFloat
	TypeBool   = predicate.TypeBool
	TypeString = predicate.TypeString
)

// attrNameSize is the fixed on-disk width of an attribute name, matching
// the 20-byte field the original schema header reserves per attribute.
const attrNameSize = 20

// Attribute describes one schema column. Length is meaningful only for
// TypeString; it is the fixed number of payload bytes the column
// occupies.
type Attribute struct {
	Name   string
	Type   DataType
	Length int
}

// byteSize returns how many payload bytes this attribute occupies in a
// record.
func (a Attribute) byteSize() int {
	switch a.Type {
	case TypeInt:
		return 4
	case TypeFloat:
		return 4
	case TypeBool:
		return 1
	case TypeString:
		return a.Length
	default:
		return 0
	}
}

// Schema is an ordered list of attributes plus an informational key
// index list (no uniqueness is enforced by this package).
type Schema struct {
	Attrs    []Attribute
	KeyAttrs []int
}

// RecordSize returns the sum of attribute byte sizes — R in the spec's
// notation.
func (s *Schema) RecordSize() int {
	size := 0
	for _, a := range s.Attrs {
		size += a.byteSize()
	}
	return size
}

// offsetOf returns the byte offset of attribute attrNum within a
// record's payload: the sum of the sizes of every preceding attribute.
func (s *Schema) offsetOf(attrNum int) int {
	off := 0
	for i := 0; i < attrNum; i++ {
		off += s.Attrs[i].byteSize()
	}
	return off
}

// headerSize returns the number of bytes encodeSchemaHeader writes for a
// schema with the given number of attributes and key indices.
func headerSize(numAttr, keySize int) int {
	return 4 + 4 + 4 + 4 + numAttr*(attrNameSize+4+4) + 4 + keySize*4
}

// encodeSchemaHeader serializes numTuples, firstFreePage, recordSize and
// the schema into the page-0 layout from spec.md §3. The returned slice
// is exactly headerSize(len(attrs), len(keyAttrs)) bytes; the caller
// copies it into a zero-filled page buffer.
func encodeSchemaHeader(numTuples, firstFreePage uint32, s *Schema) []byte {
	recordSize := uint32(s.RecordSize())
	numAttr := uint32(len(s.Attrs))
	keySize := uint32(len(s.KeyAttrs))

	buf := make([]byte, headerSize(len(s.Attrs), len(s.KeyAttrs)))
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], numTuples)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], firstFreePage)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], recordSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], numAttr)
	off += 4

	for _, a := range s.Attrs {
		nameBytes := make([]byte, attrNameSize)
		copy(nameBytes, a.Name)
		copy(buf[off:], nameBytes)
		off += attrNameSize
		binary.LittleEndian.PutUint32(buf[off:], uint32(a.Type))
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(a.Length))
		off += 4
	}

	binary.LittleEndian.PutUint32(buf[off:], keySize)
	off += 4
	for _, k := range s.KeyAttrs {
		binary.LittleEndian.PutUint32(buf[off:], uint32(k))
		off += 4
	}
	return buf
}

// decodeSchemaHeader parses page 0's bytes into the tuple count, free
// page hint, and schema, and checks the stored recordSize against the
// schema's computed size. A mismatch means the header bytes do not
// describe a consistent schema and is reported as dberr.ReadFailed
// rather than silently trusting either value.
func decodeSchemaHeader(page []byte) (numTuples, firstFreePage uint32, s *Schema, err error) {
	const op = "record.decodeSchemaHeader"
	if len(page) < 16 {
		return 0, 0, nil, dberr.New(op, dberr.ReadFailed)
	}

	off := 0
	numTuples = binary.LittleEndian.Uint32(page[off:])
	off += 4
	firstFreePage = binary.LittleEndian.Uint32(page[off:])
	off += 4
	storedRecordSize := binary.LittleEndian.Uint32(page[off:])
	off += 4
	numAttr := binary.LittleEndian.Uint32(page[off:])
	off += 4

	s = &Schema{Attrs: make([]Attribute, numAttr)}
	for i := range s.Attrs {
		if off+attrNameSize+8 > len(page) {
			return 0, 0, nil, dberr.New(op, dberr.ReadFailed)
		}
		nameBytes := page[off : off+attrNameSize]
		end := 0
		for end < len(nameBytes) && nameBytes[end] != 0 {
			end++
		}
		name := string(nameBytes[:end])
		off += attrNameSize

		dt := DataType(binary.LittleEndian.Uint32(page[off:]))
		off += 4
		length := int(binary.LittleEndian.Uint32(page[off:]))
		off += 4

		s.Attrs[i] = Attribute{Name: name, Type: dt, Length: length}
	}

	if off+4 > len(page) {
		return 0, 0, nil, dberr.New(op, dberr.ReadFailed)
	}
	keySize := binary.LittleEndian.Uint32(page[off:])
	off += 4
	s.KeyAttrs = make([]int, keySize)
	for i := range s.KeyAttrs {
		if off+4 > len(page) {
			return 0, 0, nil, dberr.New(op, dberr.ReadFailed)
		}
		s.KeyAttrs[i] = int(binary.LittleEndian.Uint32(page[off:]))
		off += 4
	}

	if storedRecordSize != uint32(s.RecordSize()) {
		return 0, 0, nil, dberr.New(op, dberr.ReadFailed)
	}

	return numTuples, firstFreePage, s, nil
}
