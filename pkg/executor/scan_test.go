package executor

import (
	"testing"

	"github.com/wcygan/sql-database/pkg/expr"
	"github.com/wcygan/sql-database/pkg/plan"
	"github.com/wcygan/sql-database/pkg/types"
)

func TestSeqScanEmptyTable(t *testing.T) {
	ctx := newTestContext(t)
	meta := createUsersTable(t, ctx, false)

	scan := NewSeqScan(meta.ID, meta.Schema.ColumnNames())
	rows := drain(t, scan, ctx)
	if len(rows) != 0 {
		t.Errorf("scan of empty table returned %d rows", len(rows))
	}
}

func TestSeqScanReturnsRowsInPageSlotOrder(t *testing.T) {
	ctx := newTestContext(t)
	meta := createUsersTable(t, ctx, false)
	seedRows(t, ctx, meta.ID,
		userRow(1, "alice", true),
		userRow(2, "bob", false),
		userRow(3, "carol", true),
	)

	scan := NewSeqScan(meta.ID, meta.Schema.ColumnNames())
	rows := drain(t, scan, ctx)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i, want := range []int64{1, 2, 3} {
		if !rows[i].Values[0].Equal(types.NewInt(want)) {
			t.Errorf("row %d: id = %v, want %d", i, rows[i].Values[0], want)
		}
		if _, ok := rows[i].RID(); !ok {
			t.Errorf("row %d carries no rid", i)
		}
	}
}

func TestSeqScanSkipsTombstones(t *testing.T) {
	ctx := newTestContext(t)
	meta := createUsersTable(t, ctx, false)
	rids := seedRows(t, ctx, meta.ID,
		userRow(1, "alice", true),
		userRow(2, "bob", false),
		userRow(3, "carol", true),
	)
	if err := ctx.Heap(meta.ID).Delete(rids[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	scan := NewSeqScan(meta.ID, meta.Schema.ColumnNames())
	rows := drain(t, scan, ctx)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !rows[0].Values[0].Equal(types.NewInt(1)) || !rows[1].Values[0].Equal(types.NewInt(3)) {
		t.Errorf("unexpected rows: %v, %v", rows[0].Values, rows[1].Values)
	}
}

func TestSeqScanUnknownTable(t *testing.T) {
	ctx := newTestContext(t)
	scan := NewSeqScan(999, []string{"id"})
	if err := scan.Open(ctx); err == nil {
		t.Error("expected error opening scan of unknown table")
	}
}

func TestFilterSelectsMatchingRows(t *testing.T) {
	ctx := newTestContext(t)
	meta := createUsersTable(t, ctx, false)
	seedRows(t, ctx, meta.ID,
		userRow(1, "alice", true),
		userRow(2, "bob", false),
		userRow(3, "carol", true),
	)

	// WHERE active
	scan := NewSeqScan(meta.ID, meta.Schema.ColumnNames())
	filter := NewFilter(scan, expr.Column(2))
	rows := drain(t, filter, ctx)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for _, r := range rows {
		if !r.Values[2].Equal(types.NewBool(true)) {
			t.Errorf("filter let through %v", r.Values)
		}
		if _, ok := r.RID(); !ok {
			t.Error("filter dropped the rid")
		}
	}
}

func TestFilterNullPredicateRejects(t *testing.T) {
	ctx := newTestContext(t)
	meta := createUsersTable(t, ctx, false)
	heap := ctx.Heap(meta.ID)
	if _, err := heap.Insert(types.NewRow(types.NewInt(1), types.Null(), types.NewBool(true))); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// WHERE name = 'alice' — name is NULL, comparison yields NULL, row is
	// rejected rather than erroring.
	scan := NewSeqScan(meta.ID, meta.Schema.ColumnNames())
	filter := NewFilter(scan, expr.Binary(expr.Column(1), expr.OpEq, textLit("alice")))
	rows := drain(t, filter, ctx)
	if len(rows) != 0 {
		t.Errorf("NULL predicate passed %d rows", len(rows))
	}
}

func TestFilterNonBoolPredicateFails(t *testing.T) {
	ctx := newTestContext(t)
	meta := createUsersTable(t, ctx, false)
	seedRows(t, ctx, meta.ID, userRow(1, "alice", true))

	scan := NewSeqScan(meta.ID, meta.Schema.ColumnNames())
	filter := NewFilter(scan, expr.Column(0)) // id is INT
	if err := filter.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := filter.Next(ctx); err == nil {
		t.Error("expected error for non-boolean predicate")
	}
}

func TestProjectReordersColumns(t *testing.T) {
	ctx := newTestContext(t)
	meta := createUsersTable(t, ctx, false)
	seedRows(t, ctx, meta.ID, userRow(1, "alice", true))

	scan := NewSeqScan(meta.ID, meta.Schema.ColumnNames())
	project := NewProject(scan, []plan.ProjectColumn{
		{Name: "name", Ordinal: 1},
		{Name: "id", Ordinal: 0},
	})
	rows := drain(t, project, ctx)
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if !rows[0].Values[0].Equal(types.NewText("alice")) || !rows[0].Values[1].Equal(types.NewInt(1)) {
		t.Errorf("projection wrong: %v", rows[0].Values)
	}
	got := project.Schema()
	if len(got) != 2 || got[0] != "name" || got[1] != "id" {
		t.Errorf("schema = %v", got)
	}
}

func TestProjectBoundChecksOnOpen(t *testing.T) {
	ctx := newTestContext(t)
	meta := createUsersTable(t, ctx, false)

	scan := NewSeqScan(meta.ID, meta.Schema.ColumnNames())
	project := NewProject(scan, []plan.ProjectColumn{{Name: "ghost", Ordinal: 9}})
	if err := project.Open(ctx); err == nil {
		t.Error("expected out-of-bounds error on open")
	}
}
