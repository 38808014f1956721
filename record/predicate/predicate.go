// Package predicate implements the expression evaluator used by
// sequential scans: a small tagged-tree predicate language evaluated
// against a single record through an AttrAccessor, independent of the
// record package's own table/page machinery.
//
// Grounded on original_source/assign3/record_mgr.c's evalExpr/Value/Expr
// usage, re-expressed as a sealed Go interface instead of a tagged C
// union with an ExprType discriminant.
package predicate

import "github.com/nkharia/storecore/dberr"

// DataType tags a Value's dynamic type. Defined here (not in record) so
// that record can depend on predicate for the shared vocabulary without
// predicate ever depending back on record.
type DataType uint32

const (
	TypeInt DataType = iota
	TypeFloat
	TypeBool
	TypeString
)

// Value is a dynamically-typed scalar: a constant in an expression tree,
// or the result of evaluating one.
type Value struct {
	Type DataType
	Int  int32
	Flt  float32
	Bool bool
	Str  string
}

func IntValue(v int32) Value     { return Value{Type: TypeInt, Int: v} }
func FloatValue(v float32) Value { return Value{Type: TypeFloat, Flt: v} }
func BoolValue(v bool) Value     { return Value{Type: TypeBool, Bool: v} }
func StringValue(v string) Value { return Value{Type: TypeString, Str: v} }

// AttrAccessor resolves an attribute reference against whatever record
// and schema the caller bound ahead of time.
type AttrAccessor interface {
	GetAttr(attrNum int) (Value, error)
}

// Op names a comparison or boolean combinator.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpNot
	OpEq
	OpLt
)

// Expr is a node in a predicate expression tree: exactly one of Const,
// AttrRef, or Op-with-operands is meaningful, per the concrete
// constructor used to build it.
type Expr interface {
	isExpr()
}

// ConstExpr is a literal value.
type ConstExpr struct {
	Value Value
}

func (ConstExpr) isExpr() {}

// Const builds a literal expression node.
func Const(v Value) Expr { return ConstExpr{Value: v} }

// AttrRefExpr resolves to the value of attribute Index in the record
// being evaluated against.
type AttrRefExpr struct {
	Index int
}

func (AttrRefExpr) isExpr() {}

// AttrRef builds an attribute-reference expression node.
func AttrRef(index int) Expr { return AttrRefExpr{Index: index} }

// OpExpr applies Kind to Operands. AND/OR take any number of operands
// and short-circuit; NOT takes exactly one; = and < take exactly two.
type OpExpr struct {
	Kind     Op
	Operands []Expr
}

func (OpExpr) isExpr() {}

// And, Or, Not, Eq and Lt build OpExpr nodes.
func And(operands ...Expr) Expr { return OpExpr{Kind: OpAnd, Operands: operands} }
func Or(operands ...Expr) Expr  { return OpExpr{Kind: OpOr, Operands: operands} }
func Not(operand Expr) Expr     { return OpExpr{Kind: OpNot, Operands: []Expr{operand}} }
func Eq(a, b Expr) Expr         { return OpExpr{Kind: OpEq, Operands: []Expr{a, b}} }
func Lt(a, b Expr) Expr         { return OpExpr{Kind: OpLt, Operands: []Expr{a, b}} }

// Eval evaluates expr against whatever record acc is bound to. Type
// mismatches between operands (or between a comparison's declared use
// and an operand's dynamic type) fail with dberr.TypeMismatch.
func Eval(expr Expr, acc AttrAccessor) (Value, error) {
	const op = "predicate.Eval"

	switch e := expr.(type) {
	case ConstExpr:
		return e.Value, nil

	case AttrRefExpr:
		return acc.GetAttr(e.Index)

	case OpExpr:
		switch e.Kind {
		case OpAnd:
			for _, operand := range e.Operands {
				v, err := Eval(operand, acc)
				if err != nil {
					return Value{}, err
				}
				if v.Type != TypeBool {
					return Value{}, dberr.New(op, dberr.TypeMismatch)
				}
				if !v.Bool {
					return BoolValue(false), nil
				}
			}
			return BoolValue(true), nil

		case OpOr:
			for _, operand := range e.Operands {
				v, err := Eval(operand, acc)
				if err != nil {
					return Value{}, err
				}
				if v.Type != TypeBool {
					return Value{}, dberr.New(op, dberr.TypeMismatch)
				}
				if v.Bool {
					return BoolValue(true), nil
				}
			}
			return BoolValue(false), nil

		case OpNot:
			if len(e.Operands) != 1 {
				return Value{}, dberr.New(op, dberr.InvalidParam)
			}
			v, err := Eval(e.Operands[0], acc)
			if err != nil {
				return Value{}, err
			}
			if v.Type != TypeBool {
				return Value{}, dberr.New(op, dberr.TypeMismatch)
			}
			return BoolValue(!v.Bool), nil

		case OpEq, OpLt:
			if len(e.Operands) != 2 {
				return Value{}, dberr.New(op, dberr.InvalidParam)
			}
			left, err := Eval(e.Operands[0], acc)
			if err != nil {
				return Value{}, err
			}
			right, err := Eval(e.Operands[1], acc)
			if err != nil {
				return Value{}, err
			}
			if left.Type != right.Type {
				return Value{}, dberr.New(op, dberr.TypeMismatch)
			}
			return compare(e.Kind, left, right)

		default:
			return Value{}, dberr.New(op, dberr.InvalidParam)
		}

	default:
		return Value{}, dberr.New(op, dberr.InvalidParam)
	}
}

func compare(kind Op, left, right Value) (Value, error) {
	const op = "predicate.compare"
	switch left.Type {
	case TypeInt:
		if kind == OpEq {
			return BoolValue(left.Int == right.Int), nil
		}
		return BoolValue(left.Int < right.Int), nil
	case TypeFloat:
		if kind == OpEq {
			return BoolValue(left.Flt == right.Flt), nil
		}
		return BoolValue(left.Flt < right.Flt), nil
	case TypeBool:
		if kind == OpEq {
			return BoolValue(left.Bool == right.Bool), nil
		}
		return Value{}, dberr.New(op, dberr.TypeMismatch)
	case TypeString:
		if kind == OpEq {
			return BoolValue(left.Str == right.Str), nil
		}
		return BoolValue(left.Str < right.Str), nil
	default:
		return Value{}, dberr.New(op, dberr.TypeMismatch)
	}
}
