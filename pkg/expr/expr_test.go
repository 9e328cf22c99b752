package expr

import (
	"errors"
	"testing"

	"github.com/wcygan/sql-database/pkg/types"
)

func lit(v types.Value) *Resolved { return Literal(v) }

func evalOK(t *testing.T, e *Resolved, row types.Row) types.Value {
	t.Helper()
	v, err := Eval(e, row)
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	return v
}

func TestEvalLeaves(t *testing.T) {
	row := types.NewRow(types.NewInt(10), types.NewText("a"))

	if got := evalOK(t, lit(types.NewInt(7)), row); !got.Equal(types.NewInt(7)) {
		t.Errorf("literal: got %v", got)
	}
	if got := evalOK(t, Column(1), row); !got.Equal(types.NewText("a")) {
		t.Errorf("column: got %v", got)
	}
	if _, err := Eval(Column(5), row); !errors.Is(err, ErrEval) {
		t.Errorf("out-of-bounds column: got %v", err)
	}
}

func TestEvalComparisons(t *testing.T) {
	tests := []struct {
		name string
		e    *Resolved
		want types.Value
	}{
		{"1 = 1", Binary(lit(types.NewInt(1)), OpEq, lit(types.NewInt(1))), types.NewBool(true)},
		{"1 != 2", Binary(lit(types.NewInt(1)), OpNe, lit(types.NewInt(2))), types.NewBool(true)},
		{"1 < 2", Binary(lit(types.NewInt(1)), OpLt, lit(types.NewInt(2))), types.NewBool(true)},
		{"2 <= 1", Binary(lit(types.NewInt(2)), OpLe, lit(types.NewInt(1))), types.NewBool(false)},
		{"'b' > 'a'", Binary(lit(types.NewText("b")), OpGt, lit(types.NewText("a"))), types.NewBool(true)},
		{"false >= true", Binary(lit(types.NewBool(false)), OpGe, lit(types.NewBool(true))), types.NewBool(false)},
		{"null = 1 is null", Binary(lit(types.Null()), OpEq, lit(types.NewInt(1))), types.Null()},
		{"1 < null is null", Binary(lit(types.NewInt(1)), OpLt, lit(types.Null())), types.Null()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evalOK(t, tt.e, types.Row{}); !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalCrossTypeComparisonIsError(t *testing.T) {
	e := Binary(lit(types.NewInt(1)), OpEq, lit(types.NewText("1")))
	if _, err := Eval(e, types.Row{}); !errors.Is(err, ErrEval) {
		t.Errorf("expected type error, got %v", err)
	}
}

func TestThreeValuedLogic(t *testing.T) {
	tr := lit(types.NewBool(true))
	fa := lit(types.NewBool(false))
	nu := lit(types.Null())

	tests := []struct {
		name string
		e    *Resolved
		want types.Value
	}{
		{"true AND true", Binary(tr, OpAnd, tr), types.NewBool(true)},
		{"true AND false", Binary(tr, OpAnd, fa), types.NewBool(false)},
		{"true AND null", Binary(tr, OpAnd, nu), types.Null()},
		{"false AND null", Binary(fa, OpAnd, nu), types.NewBool(false)},
		{"null AND false", Binary(nu, OpAnd, fa), types.NewBool(false)},
		{"null AND null", Binary(nu, OpAnd, nu), types.Null()},
		{"false OR false", Binary(fa, OpOr, fa), types.NewBool(false)},
		{"true OR null", Binary(tr, OpOr, nu), types.NewBool(true)},
		{"null OR true", Binary(nu, OpOr, tr), types.NewBool(true)},
		{"false OR null", Binary(fa, OpOr, nu), types.Null()},
		{"null OR null", Binary(nu, OpOr, nu), types.Null()},
		{"NOT true", Not(tr), types.NewBool(false)},
		{"NOT false", Not(fa), types.NewBool(true)},
		{"NOT null", Not(nu), types.Null()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evalOK(t, tt.e, types.Row{}); !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogicalOperandsMustBeBool(t *testing.T) {
	e := Binary(lit(types.NewInt(1)), OpAnd, lit(types.NewBool(true)))
	if _, err := Eval(e, types.Row{}); !errors.Is(err, ErrEval) {
		t.Errorf("AND over int: expected error, got %v", err)
	}
	if _, err := Eval(Not(lit(types.NewInt(1))), types.Row{}); !errors.Is(err, ErrEval) {
		t.Errorf("NOT over int: expected error, got %v", err)
	}
}

func TestEvalNestedPredicate(t *testing.T) {
	// (id >= 2 AND NOT flag) OR name = 'carol'
	row := types.NewRow(types.NewInt(3), types.NewText("dave"), types.NewBool(false))
	e := Binary(
		Binary(
			Binary(Column(0), OpGe, lit(types.NewInt(2))),
			OpAnd,
			Not(Column(2)),
		),
		OpOr,
		Binary(Column(1), OpEq, lit(types.NewText("carol"))),
	)
	if got := evalOK(t, e, row); !got.Equal(types.NewBool(true)) {
		t.Errorf("got %v", got)
	}
}
