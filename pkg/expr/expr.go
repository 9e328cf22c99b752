// Package expr defines resolved scalar expressions and their evaluation
// against a row. Column references are ordinals; name binding happens in the
// planner before an expression ever reaches this package.
package expr

import (
	"errors"
	"fmt"

	"github.com/wcygan/sql-database/pkg/types"
)

// BinaryOp enumerates comparison and logical operators.
type BinaryOp int

const (
	OpEq BinaryOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

// String returns the SQL spelling of the operator.
func (op BinaryOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	default:
		return "?"
	}
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
)

// Resolved is a scalar expression with column references bound to ordinals.
type Resolved struct {
	Kind ResolvedKind

	Literal types.Value
	Column  types.ColumnID

	Unary  UnaryOp
	Binary BinaryOp
	Left   *Resolved
	Right  *Resolved
}

// ResolvedKind discriminates the expression node.
type ResolvedKind int

const (
	KindLiteral ResolvedKind = iota
	KindColumn
	KindUnary
	KindBinary
)

// Literal builds a literal node.
func Literal(v types.Value) *Resolved {
	return &Resolved{Kind: KindLiteral, Literal: v}
}

// Column builds a column reference node.
func Column(ord types.ColumnID) *Resolved {
	return &Resolved{Kind: KindColumn, Column: ord}
}

// Not builds a logical negation node.
func Not(inner *Resolved) *Resolved {
	return &Resolved{Kind: KindUnary, Unary: OpNot, Left: inner}
}

// Binary builds a binary operator node.
func Binary(left *Resolved, op BinaryOp, right *Resolved) *Resolved {
	return &Resolved{Kind: KindBinary, Binary: op, Left: left, Right: right}
}

// ErrEval tags expression evaluation failures (type mismatches and
// out-of-bounds columns).
var ErrEval = errors.New("expr: evaluation failed")

// Eval evaluates the expression against a row.
//
// NULL handling follows SQL three-valued logic: a comparison with NULL on
// either side yields NULL; AND and OR short-circuit on their dominant value
// (false AND NULL = false, true OR NULL = true) and yield NULL otherwise;
// NOT NULL is NULL. Comparisons between different non-null tags are a type
// error, not NULL.
func Eval(e *Resolved, row types.Row) (types.Value, error) {
	switch e.Kind {
	case KindLiteral:
		return e.Literal, nil
	case KindColumn:
		idx := int(e.Column)
		if idx >= len(row.Values) {
			return types.Value{}, fmt.Errorf("%w: column %d out of bounds (row has %d columns)",
				ErrEval, idx, len(row.Values))
		}
		return row.Values[idx], nil
	case KindUnary:
		val, err := Eval(e.Left, row)
		if err != nil {
			return types.Value{}, err
		}
		return evalUnary(e.Unary, val)
	case KindBinary:
		left, err := Eval(e.Left, row)
		if err != nil {
			return types.Value{}, err
		}
		right, err := Eval(e.Right, row)
		if err != nil {
			return types.Value{}, err
		}
		return evalBinary(left, e.Binary, right)
	default:
		return types.Value{}, fmt.Errorf("%w: unknown expression kind %d", ErrEval, e.Kind)
	}
}

func evalUnary(op UnaryOp, val types.Value) (types.Value, error) {
	switch op {
	case OpNot:
		if val.IsNull() {
			return types.Null(), nil
		}
		b, ok := val.AsBool()
		if !ok {
			return types.Value{}, fmt.Errorf("%w: NOT expects BOOL, got %s", ErrEval, val.TypeOf())
		}
		return types.NewBool(!b), nil
	default:
		return types.Value{}, fmt.Errorf("%w: unknown unary operator %d", ErrEval, op)
	}
}

func evalBinary(left types.Value, op BinaryOp, right types.Value) (types.Value, error) {
	switch op {
	case OpAnd, OpOr:
		return evalLogical(left, op, right)
	}

	// Comparison: NULL on either side propagates.
	if left.IsNull() || right.IsNull() {
		return types.Null(), nil
	}
	ord, ok := left.CompareSameType(right)
	if !ok {
		return types.Value{}, fmt.Errorf("%w: incompatible types for %s: %s and %s",
			ErrEval, op, left.TypeOf(), right.TypeOf())
	}
	switch op {
	case OpEq:
		return types.NewBool(ord == 0), nil
	case OpNe:
		return types.NewBool(ord != 0), nil
	case OpLt:
		return types.NewBool(ord < 0), nil
	case OpLe:
		return types.NewBool(ord <= 0), nil
	case OpGt:
		return types.NewBool(ord > 0), nil
	case OpGe:
		return types.NewBool(ord >= 0), nil
	default:
		return types.Value{}, fmt.Errorf("%w: unknown binary operator %d", ErrEval, op)
	}
}

// evalLogical implements three-valued AND/OR over {true, false, null}.
func evalLogical(left types.Value, op BinaryOp, right types.Value) (types.Value, error) {
	lb, lok := boolOrNull(left)
	if !lok {
		return types.Value{}, fmt.Errorf("%w: %s expects BOOL operands, got %s", ErrEval, op, left.TypeOf())
	}
	rb, rok := boolOrNull(right)
	if !rok {
		return types.Value{}, fmt.Errorf("%w: %s expects BOOL operands, got %s", ErrEval, op, right.TypeOf())
	}

	switch op {
	case OpAnd:
		if lb == tvFalse || rb == tvFalse {
			return types.NewBool(false), nil
		}
		if lb == tvNull || rb == tvNull {
			return types.Null(), nil
		}
		return types.NewBool(true), nil
	case OpOr:
		if lb == tvTrue || rb == tvTrue {
			return types.NewBool(true), nil
		}
		if lb == tvNull || rb == tvNull {
			return types.Null(), nil
		}
		return types.NewBool(false), nil
	}
	return types.Value{}, fmt.Errorf("%w: unknown logical operator %d", ErrEval, op)
}

type truthValue int

const (
	tvFalse truthValue = iota
	tvTrue
	tvNull
)

func boolOrNull(v types.Value) (truthValue, bool) {
	if v.IsNull() {
		return tvNull, true
	}
	b, ok := v.AsBool()
	if !ok {
		return tvFalse, false
	}
	if b {
		return tvTrue, true
	}
	return tvFalse, true
}
