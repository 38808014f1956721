package record

import (
	"encoding/binary"
	"math"

	"github.com/nkharia/storecore/dberr"
	"github.com/nkharia/storecore/record/predicate"
)

// Value is a dynamically-typed attribute value, aliased from
// predicate.Value so GetAttr/SetAttr and the scan predicate evaluator
// share one vocabulary.
type Value = predicate.Value

// IntValue, FloatValue, BoolValue and StringValue build typed Values.
func IntValue(v int32) Value     { return predicate.IntValue(v) }
func FloatValue(v float32) Value { return predicate.FloatValue(v) }
func BoolValue(v bool) Value     { return predicate.BoolValue(v) }
func StringValue(v string) Value { return predicate.StringValue(v) }

// RID identifies a record's physical location: the data page holding it
// and its slot within that page. RIDs are stable for the record's
// lifetime — the core never relocates a live record.
type RID struct {
	Page int64
	Slot int
}

// NoRID is the sentinel for "not a record" ({-1, -1}, not RID's zero
// value).
var NoRID = RID{Page: -1, Slot: -1}

// Record pairs a payload buffer with the RID it was read from or
// inserted at.
type Record struct {
	ID   RID
	Data []byte
}

// NewRecord allocates a zeroed record payload sized for schema.
func NewRecord(s *Schema) *Record {
	return &Record{ID: NoRID, Data: make([]byte, s.RecordSize())}
}

// GetAttr reads attribute attrNum out of record's payload.
func GetAttr(rec *Record, s *Schema, attrNum int) (Value, error) {
	const op = "record.GetAttr"
	if attrNum < 0 || attrNum >= len(s.Attrs) {
		return Value{}, dberr.New(op, dberr.InvalidParam)
	}
	a := s.Attrs[attrNum]
	off := s.offsetOf(attrNum)
	if off+a.byteSize() > len(rec.Data) {
		return Value{}, dberr.New(op, dberr.InvalidParam)
	}
	field := rec.Data[off : off+a.byteSize()]

	switch a.Type {
	case TypeInt:
		return Value{Type: TypeInt, Int: int32(binary.LittleEndian.Uint32(field))}, nil
	case TypeFloat:
		bits := binary.LittleEndian.Uint32(field)
		return Value{Type: TypeFloat, Flt: math.Float32frombits(bits)}, nil
	case TypeBool:
		return Value{Type: TypeBool, Bool: field[0] != 0}, nil
	case TypeString:
		end := 0
		for end < len(field) && field[end] != 0 {
			end++
		}
		return Value{Type: TypeString, Str: string(field[:end])}, nil
	default:
		return Value{}, dberr.New(op, dberr.TypeMismatch)
	}
}

// SetAttr writes value into attribute attrNum of record's payload.
// value.Type must match the schema's declared type for attrNum.
func SetAttr(rec *Record, s *Schema, attrNum int, value Value) error {
	const op = "record.SetAttr"
	if attrNum < 0 || attrNum >= len(s.Attrs) {
		return dberr.New(op, dberr.InvalidParam)
	}
	a := s.Attrs[attrNum]
	if value.Type != a.Type {
		return dberr.New(op, dberr.TypeMismatch)
	}
	off := s.offsetOf(attrNum)
	size := a.byteSize()
	if off+size > len(rec.Data) {
		return dberr.New(op, dberr.InvalidParam)
	}
	field := rec.Data[off : off+size]

	switch a.Type {
	case TypeInt:
		binary.LittleEndian.PutUint32(field, uint32(value.Int))
	case TypeFloat:
		binary.LittleEndian.PutUint32(field, math.Float32bits(value.Flt))
	case TypeBool:
		if value.Bool {
			field[0] = 1
		} else {
			field[0] = 0
		}
	case TypeString:
		for i := range field {
			field[i] = 0
		}
		copy(field, value.Str[:min(len(value.Str), size)])
	default:
		return dberr.New(op, dberr.TypeMismatch)
	}
	return nil
}

// boundRecord binds a record to a schema so it can be handed to the
// predicate evaluator as a predicate.AttrAccessor without that package
// needing to know about *Record or *Schema.
type boundRecord struct {
	rec    *Record
	schema *Schema
}

func (b boundRecord) GetAttr(attrNum int) (Value, error) {
	return GetAttr(b.rec, b.schema, attrNum)
}
