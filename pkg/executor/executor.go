// Package executor runs physical plans with a Volcano-style pull model.
// Every operator implements Open/Next/Close and composes in a tree; the
// shared Context is the only route to the catalog, the buffer pool,
// the WAL, and the primary-key indexes, which is how the "log before store"
// protocol is enforced in one place.
package executor

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wcygan/sql-database/pkg/catalog"
	"github.com/wcygan/sql-database/pkg/storage"
	"github.com/wcygan/sql-database/pkg/types"
	"github.com/wcygan/sql-database/pkg/wal"
)

// Constraint violations surfaced by DML operators.
var (
	ErrDuplicateKey        = errors.New("constraint: duplicate primary key")
	ErrPrimaryKeyImmutable = errors.New("constraint: primary key columns cannot be updated")
)

// Executor is the Volcano operator interface. Open prepares resources, Next
// produces one row (ok=false once the stream is exhausted), Close releases
// resources. Operators delegate Open and Close to their children.
type Executor interface {
	Open(ctx *Context) error
	Next(ctx *Context) (types.Row, bool, error)
	Close(ctx *Context) error
	Schema() []string
}

// Context bundles the shared state an operator tree runs against. The
// database facade reuses one context for every statement and serializes
// statements, so operators never see concurrent mutation.
type Context struct {
	Catalog *catalog.Catalog
	Pager   *storage.Pager
	WAL     *wal.WAL
	DataDir string
	Log     *zap.SugaredLogger

	pkIndexes map[types.TableID]*PrimaryKeyIndex
}

// NewContext builds an execution context. The primary-key index map persists
// across statements when the same Context is reused by the facade.
func NewContext(cat *catalog.Catalog, pager *storage.Pager, w *wal.WAL, dataDir string, log *zap.SugaredLogger) *Context {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Context{
		Catalog:   cat,
		Pager:     pager,
		WAL:       w,
		DataDir:   dataDir,
		Log:       log,
		pkIndexes: make(map[types.TableID]*PrimaryKeyIndex),
	}
}

// Heap returns the heap file handle for a table.
func (ctx *Context) Heap(table types.TableID) *storage.Heap {
	return storage.NewHeap(ctx.Pager, table)
}

// PKIndex returns the in-memory primary-key index for the table, building it
// from a heap scan on first access. Tables without a primary key return nil.
func (ctx *Context) PKIndex(table types.TableID) (*PrimaryKeyIndex, error) {
	if idx, ok := ctx.pkIndexes[table]; ok {
		return idx, nil
	}
	meta, err := ctx.Catalog.TableByID(table)
	if err != nil {
		return nil, err
	}
	if !meta.Schema.HasPrimaryKey() {
		return nil, nil
	}
	idx := NewPrimaryKeyIndex(meta.Schema.PrimaryKey)
	if err := idx.Build(ctx.Heap(table)); err != nil {
		return nil, err
	}
	ctx.pkIndexes[table] = idx
	ctx.Log.Debugw("built primary-key index", "table", meta.Name, "entries", idx.Len())
	return idx, nil
}

// DropPKIndex discards the cached index for a table (used by DROP TABLE).
func (ctx *Context) DropPKIndex(table types.TableID) {
	delete(ctx.pkIndexes, table)
}

// LogDML appends the record and syncs the WAL. Every mutation an operator
// makes to the heap must pass through here first, except the Insert path,
// which logs immediately after obtaining its record ID (see InsertExec).
func (ctx *Context) LogDML(rec *wal.Record) error {
	if err := ctx.WAL.Append(rec); err != nil {
		return err
	}
	return ctx.WAL.Sync()
}

// ExecuteQuery drains an operator tree and returns all produced rows.
func ExecuteQuery(root Executor, ctx *Context) ([]types.Row, error) {
	if err := root.Open(ctx); err != nil {
		return nil, err
	}
	var rows []types.Row
	for {
		row, ok, err := root.Next(ctx)
		if err != nil {
			_ = root.Close(ctx)
			return nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if err := root.Close(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecuteDML runs a modifying operator tree and returns the affected-row
// count from its synthetic result row.
func ExecuteDML(root Executor, ctx *Context) (uint64, error) {
	if err := root.Open(ctx); err != nil {
		return 0, err
	}
	row, ok, err := root.Next(ctx)
	if err != nil {
		_ = root.Close(ctx)
		return 0, err
	}
	if !ok {
		_ = root.Close(ctx)
		return 0, fmt.Errorf("executor: DML operator produced no result")
	}
	if err := root.Close(ctx); err != nil {
		return 0, err
	}
	if len(row.Values) == 0 || row.Values[0].Tag != types.TagInt {
		return 0, fmt.Errorf("executor: DML result count must be an integer")
	}
	return uint64(row.Values[0].Int), nil
}
