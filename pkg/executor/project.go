package executor

import (
	"fmt"

	"github.com/wcygan/sql-database/pkg/plan"
	"github.com/wcygan/sql-database/pkg/types"
)

// ProjectExec narrows rows to the requested ordinals in the requested order.
// Output rows are synthesized and carry no record ID.
type ProjectExec struct {
	input   Executor
	columns []plan.ProjectColumn
	schema  []string
}

// NewProject wraps a child with an output column list.
func NewProject(input Executor, columns []plan.ProjectColumn) *ProjectExec {
	schema := make([]string, len(columns))
	for i, col := range columns {
		schema[i] = col.Name
	}
	return &ProjectExec{input: input, columns: columns, schema: schema}
}

func (p *ProjectExec) Open(ctx *Context) error {
	if err := p.input.Open(ctx); err != nil {
		return err
	}
	width := len(p.input.Schema())
	for _, col := range p.columns {
		if int(col.Ordinal) >= width {
			return fmt.Errorf("executor: projection ordinal %d out of bounds (input has %d columns)",
				col.Ordinal, width)
		}
	}
	return nil
}

func (p *ProjectExec) Next(ctx *Context) (types.Row, bool, error) {
	row, ok, err := p.input.Next(ctx)
	if err != nil || !ok {
		return types.Row{}, false, err
	}
	values := make([]types.Value, len(p.columns))
	for i, col := range p.columns {
		if int(col.Ordinal) >= len(row.Values) {
			return types.Row{}, false, fmt.Errorf("executor: projection ordinal %d out of bounds (row has %d columns)",
				col.Ordinal, len(row.Values))
		}
		values[i] = row.Values[col.Ordinal]
	}
	return types.Row{Values: values}, true, nil
}

func (p *ProjectExec) Close(ctx *Context) error {
	return p.input.Close(ctx)
}

func (p *ProjectExec) Schema() []string { return p.schema }
