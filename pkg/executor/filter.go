package executor

import (
	"fmt"

	"github.com/wcygan/sql-database/pkg/expr"
	"github.com/wcygan/sql-database/pkg/types"
)

// FilterExec passes through rows for which the predicate evaluates to
// Bool(true). Bool(false) and NULL both reject; any other result type is an
// error. Rows pass through untouched, record IDs included.
type FilterExec struct {
	input     Executor
	predicate *expr.Resolved
}

// NewFilter wraps a child with a predicate.
func NewFilter(input Executor, predicate *expr.Resolved) *FilterExec {
	return &FilterExec{input: input, predicate: predicate}
}

func (f *FilterExec) Open(ctx *Context) error {
	return f.input.Open(ctx)
}

func (f *FilterExec) Next(ctx *Context) (types.Row, bool, error) {
	for {
		row, ok, err := f.input.Next(ctx)
		if err != nil || !ok {
			return types.Row{}, false, err
		}
		pass, err := evalPredicate(f.predicate, row)
		if err != nil {
			return types.Row{}, false, err
		}
		if pass {
			return row, true, nil
		}
	}
}

func (f *FilterExec) Close(ctx *Context) error {
	return f.input.Close(ctx)
}

func (f *FilterExec) Schema() []string { return f.input.Schema() }

// evalPredicate reduces a predicate result to pass/reject. A nil predicate
// matches everything.
func evalPredicate(p *expr.Resolved, row types.Row) (bool, error) {
	if p == nil {
		return true, nil
	}
	result, err := expr.Eval(p, row)
	if err != nil {
		return false, err
	}
	if result.IsNull() {
		return false, nil
	}
	b, ok := result.AsBool()
	if !ok {
		return false, fmt.Errorf("%w: predicate must evaluate to BOOL, got %s", expr.ErrEval, result.TypeOf())
	}
	return b, nil
}
