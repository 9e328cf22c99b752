package executor

import (
	"errors"
	"fmt"

	"github.com/wcygan/sql-database/pkg/expr"
	"github.com/wcygan/sql-database/pkg/plan"
	"github.com/wcygan/sql-database/pkg/storage"
	"github.com/wcygan/sql-database/pkg/types"
	"github.com/wcygan/sql-database/pkg/wal"
)

// dmlSchema labels the synthetic result row every modify operator returns.
var dmlSchema = []string{"count"}

func countRow(n int64) types.Row {
	return types.NewRow(types.NewInt(n))
}

// InsertExec appends rows to a table. Per row: the primary key is checked
// against the in-memory index, the row goes into the heap to obtain its
// record ID, the insert is logged and synced, and finally the PK index is
// updated. The WAL record is written after the heap insert because the
// record ID is only known then; replay applies inserts positionally, so a
// crash between the two leaves an unlogged row that the next deterministic
// allocation overwrites.
type InsertExec struct {
	tableID  types.TableID
	rows     [][]*expr.Resolved
	executed bool
}

// NewInsert creates an insert operator for the materialized row expressions.
func NewInsert(tableID types.TableID, rows [][]*expr.Resolved) *InsertExec {
	return &InsertExec{tableID: tableID, rows: rows}
}

func (e *InsertExec) Open(ctx *Context) error {
	e.executed = false
	meta, err := ctx.Catalog.TableByID(e.tableID)
	if err != nil {
		return err
	}
	for i, row := range e.rows {
		if len(row) != len(meta.Schema.Columns) {
			return fmt.Errorf("executor: insert row %d has %d values, table %q has %d columns",
				i, len(row), meta.Name, len(meta.Schema.Columns))
		}
	}
	return nil
}

func (e *InsertExec) Next(ctx *Context) (types.Row, bool, error) {
	if e.executed {
		return types.Row{}, false, nil
	}
	e.executed = true

	pkIndex, err := ctx.PKIndex(e.tableID)
	if err != nil {
		return types.Row{}, false, err
	}
	heap := ctx.Heap(e.tableID)

	var count int64
	empty := types.Row{}
	for _, exprs := range e.rows {
		values := make([]types.Value, len(exprs))
		for i, ex := range exprs {
			v, err := expr.Eval(ex, empty)
			if err != nil {
				return types.Row{}, false, err
			}
			values[i] = v
		}
		row := types.Row{Values: values}

		var key string
		if pkIndex != nil {
			key, err = pkIndex.ExtractKey(row)
			if err != nil {
				return types.Row{}, false, err
			}
			if pkIndex.Contains(key) {
				return types.Row{}, false, fmt.Errorf("%w: table %d", ErrDuplicateKey, e.tableID)
			}
		}

		rid, err := heap.Insert(row)
		if err != nil {
			return types.Row{}, false, err
		}
		if err := ctx.LogDML(wal.NewInsertRecord(e.tableID, values, rid)); err != nil {
			return types.Row{}, false, err
		}
		if pkIndex != nil {
			if err := pkIndex.Insert(key, rid); err != nil {
				return types.Row{}, false, err
			}
		}
		count++
	}
	return countRow(count), true, nil
}

func (e *InsertExec) Close(_ *Context) error { return nil }

func (e *InsertExec) Schema() []string { return dmlSchema }

// UpdateExec rewrites matching rows. It refuses assignments that target a
// primary-key column, then drives an internal scan+filter pipeline over the
// table. Each match is logged and synced before the heap is touched;
// same-size rows are rewritten in place, size-changing rows move via
// delete+insert and the PK index entry is repointed at the new record ID.
type UpdateExec struct {
	tableID     types.TableID
	assignments []plan.Assignment
	predicate   *expr.Resolved

	input    Executor
	executed bool
}

// NewUpdate creates an update operator. A nil predicate matches every row.
func NewUpdate(tableID types.TableID, assignments []plan.Assignment, predicate *expr.Resolved) *UpdateExec {
	return &UpdateExec{tableID: tableID, assignments: assignments, predicate: predicate}
}

func (e *UpdateExec) Open(ctx *Context) error {
	e.executed = false
	meta, err := ctx.Catalog.TableByID(e.tableID)
	if err != nil {
		return err
	}
	width := len(meta.Schema.Columns)
	for _, a := range e.assignments {
		if int(a.Ordinal) >= width {
			return fmt.Errorf("executor: assignment ordinal %d out of bounds (table %q has %d columns)",
				a.Ordinal, meta.Name, width)
		}
		if meta.Schema.IsPrimaryKeyColumn(a.Ordinal) {
			return fmt.Errorf("%w: column %q of table %q",
				ErrPrimaryKeyImmutable, meta.Schema.Columns[a.Ordinal].Name, meta.Name)
		}
	}

	var input Executor = NewSeqScan(e.tableID, meta.Schema.ColumnNames())
	if e.predicate != nil {
		input = NewFilter(input, e.predicate)
	}
	e.input = input
	return e.input.Open(ctx)
}

func (e *UpdateExec) Next(ctx *Context) (types.Row, bool, error) {
	if e.executed {
		return types.Row{}, false, nil
	}
	e.executed = true

	pkIndex, err := ctx.PKIndex(e.tableID)
	if err != nil {
		return types.Row{}, false, err
	}
	heap := ctx.Heap(e.tableID)

	var count int64
	for {
		oldRow, ok, err := e.input.Next(ctx)
		if err != nil {
			return types.Row{}, false, err
		}
		if !ok {
			break
		}
		rid, hasRID := oldRow.RID()
		if !hasRID {
			return types.Row{}, false, fmt.Errorf("executor: update input row has no record id")
		}

		newValues := make([]types.Value, len(oldRow.Values))
		copy(newValues, oldRow.Values)
		for _, a := range e.assignments {
			v, err := expr.Eval(a.Value, oldRow)
			if err != nil {
				return types.Row{}, false, err
			}
			newValues[a.Ordinal] = v
		}
		newRow := types.Row{Values: newValues}

		if err := ctx.LogDML(wal.NewUpdateRecord(e.tableID, rid, newValues)); err != nil {
			return types.Row{}, false, err
		}

		err = heap.Update(rid, newRow)
		if errors.Is(err, storage.ErrSizeMismatch) {
			if err := heap.Delete(rid); err != nil {
				return types.Row{}, false, err
			}
			newRID, err := heap.Insert(newRow)
			if err != nil {
				return types.Row{}, false, err
			}
			if pkIndex != nil {
				// PK columns are immutable, so the key is unchanged; only
				// the record it points at moved.
				key, err := pkIndex.ExtractKey(oldRow)
				if err != nil {
					return types.Row{}, false, err
				}
				pkIndex.Move(key, newRID)
			}
		} else if err != nil {
			return types.Row{}, false, err
		}
		count++
	}
	return countRow(count), true, nil
}

func (e *UpdateExec) Close(ctx *Context) error {
	if e.input != nil {
		return e.input.Close(ctx)
	}
	return nil
}

func (e *UpdateExec) Schema() []string { return dmlSchema }

// DeleteExec tombstones matching rows: log and sync, delete from the heap,
// then drop the PK index entry.
type DeleteExec struct {
	tableID   types.TableID
	predicate *expr.Resolved

	input    Executor
	executed bool
}

// NewDelete creates a delete operator. A nil predicate matches every row.
func NewDelete(tableID types.TableID, predicate *expr.Resolved) *DeleteExec {
	return &DeleteExec{tableID: tableID, predicate: predicate}
}

func (e *DeleteExec) Open(ctx *Context) error {
	e.executed = false
	meta, err := ctx.Catalog.TableByID(e.tableID)
	if err != nil {
		return err
	}
	var input Executor = NewSeqScan(e.tableID, meta.Schema.ColumnNames())
	if e.predicate != nil {
		input = NewFilter(input, e.predicate)
	}
	e.input = input
	return e.input.Open(ctx)
}

func (e *DeleteExec) Next(ctx *Context) (types.Row, bool, error) {
	if e.executed {
		return types.Row{}, false, nil
	}
	e.executed = true

	pkIndex, err := ctx.PKIndex(e.tableID)
	if err != nil {
		return types.Row{}, false, err
	}
	heap := ctx.Heap(e.tableID)

	var count int64
	for {
		row, ok, err := e.input.Next(ctx)
		if err != nil {
			return types.Row{}, false, err
		}
		if !ok {
			break
		}
		rid, hasRID := row.RID()
		if !hasRID {
			return types.Row{}, false, fmt.Errorf("executor: delete input row has no record id")
		}

		var key string
		if pkIndex != nil {
			key, err = pkIndex.ExtractKey(row)
			if err != nil {
				return types.Row{}, false, err
			}
		}
		if err := ctx.LogDML(wal.NewDeleteRecord(e.tableID, rid)); err != nil {
			return types.Row{}, false, err
		}
		if err := heap.Delete(rid); err != nil {
			return types.Row{}, false, err
		}
		if pkIndex != nil {
			pkIndex.Remove(key)
		}
		count++
	}
	return countRow(count), true, nil
}

func (e *DeleteExec) Close(ctx *Context) error {
	if e.input != nil {
		return e.input.Close(ctx)
	}
	return nil
}

func (e *DeleteExec) Schema() []string { return dmlSchema }
