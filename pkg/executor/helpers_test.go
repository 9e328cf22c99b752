package executor

import (
	"path/filepath"
	"testing"

	"github.com/wcygan/sql-database/pkg/catalog"
	"github.com/wcygan/sql-database/pkg/expr"
	"github.com/wcygan/sql-database/pkg/storage"
	"github.com/wcygan/sql-database/pkg/types"
	"github.com/wcygan/sql-database/pkg/wal"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	dir := t.TempDir()

	cat, err := catalog.Open(filepath.Join(dir, "catalog.json"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	pager, err := storage.NewPager(dir, 16, nil)
	if err != nil {
		t.Fatalf("open pager: %v", err)
	}
	t.Cleanup(func() { _ = pager.Close() })
	w, err := wal.Open(filepath.Join(dir, "test.wal"))
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	return NewContext(cat, pager, w, dir, nil)
}

// createUsersTable registers (id INT, name TEXT, active BOOL) with an
// optional primary key on id.
func createUsersTable(t *testing.T, ctx *Context, withPK bool) *catalog.TableMeta {
	t.Helper()
	var pk []types.ColumnID
	if withPK {
		pk = []types.ColumnID{0}
	}
	schema, err := catalog.NewSchema([]catalog.Column{
		catalog.NewColumn("id", types.TypeInt),
		catalog.NewColumn("name", types.TypeText),
		catalog.NewColumn("active", types.TypeBool),
	}, pk)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	meta, err := ctx.Catalog.CreateTable("users", schema)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return meta
}

// seedRows inserts directly through the heap, bypassing WAL and PK checks,
// for operators that only read.
func seedRows(t *testing.T, ctx *Context, table types.TableID, rows ...types.Row) []types.RecordID {
	t.Helper()
	heap := ctx.Heap(table)
	rids := make([]types.RecordID, 0, len(rows))
	for _, r := range rows {
		rid, err := heap.Insert(r)
		if err != nil {
			t.Fatalf("seed insert: %v", err)
		}
		rids = append(rids, rid)
	}
	return rids
}

func userRow(id int64, name string, active bool) types.Row {
	return types.NewRow(types.NewInt(id), types.NewText(name), types.NewBool(active))
}

func intLit(v int64) *expr.Resolved   { return expr.Literal(types.NewInt(v)) }
func textLit(s string) *expr.Resolved { return expr.Literal(types.NewText(s)) }
func boolLit(b bool) *expr.Resolved   { return expr.Literal(types.NewBool(b)) }

// drain opens, exhausts, and closes an operator tree.
func drain(t *testing.T, root Executor, ctx *Context) []types.Row {
	t.Helper()
	rows, err := ExecuteQuery(root, ctx)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	return rows
}
