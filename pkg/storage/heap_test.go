package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wcygan/sql-database/pkg/types"
)

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	return NewHeap(newTestPager(t, 8), types.TableID(1))
}

func row(values ...types.Value) types.Row {
	return types.Row{Values: values}
}

func TestHeapInsertGet(t *testing.T) {
	h := newTestHeap(t)

	r1 := row(types.NewInt(1), types.NewText("alice"))
	rid, err := h.Insert(r1)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if rid.Page != 0 || rid.Slot != 0 {
		t.Errorf("first insert got rid %+v", rid)
	}

	got, err := h.Get(rid)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Values) != 2 || !got.Values[0].Equal(types.NewInt(1)) || !got.Values[1].Equal(types.NewText("alice")) {
		t.Errorf("got row %v", got.Values)
	}
	gotRID, ok := got.RID()
	if !ok || gotRID != rid {
		t.Errorf("row rid = %v (ok=%v), want %v", gotRID, ok, rid)
	}
}

func TestHeapGetNotFound(t *testing.T) {
	h := newTestHeap(t)
	rid, err := h.Insert(row(types.NewInt(1)))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if _, err := h.Get(types.RecordID{Page: 99, Slot: 0}); !errors.Is(err, ErrNotFound) {
		t.Errorf("out-of-range page: got %v", err)
	}
	if _, err := h.Get(types.RecordID{Page: 0, Slot: 42}); !errors.Is(err, ErrNotFound) {
		t.Errorf("out-of-range slot: got %v", err)
	}
	if err := h.Delete(rid); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := h.Get(rid); !errors.Is(err, ErrNotFound) {
		t.Errorf("tombstoned slot: got %v", err)
	}
}

func TestHeapUpdateSameSize(t *testing.T) {
	h := newTestHeap(t)
	rid, err := h.Insert(row(types.NewInt(1), types.NewBool(true)))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := h.Update(rid, row(types.NewInt(1), types.NewBool(false))); err != nil {
		t.Fatalf("same-size Update failed: %v", err)
	}
	got, err := h.Get(rid)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Values[1].Equal(types.NewBool(false)) {
		t.Errorf("update not applied: %v", got.Values)
	}
}

func TestHeapUpdateSizeMismatch(t *testing.T) {
	h := newTestHeap(t)
	rid, err := h.Insert(row(types.NewText("short")))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err = h.Update(rid, row(types.NewText("a much longer replacement")))
	if !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestHeapInsertSpillsToNewPage(t *testing.T) {
	h := newTestHeap(t)

	// ~500-byte rows: at most 8 fit on a page.
	big := strings.Repeat("x", 500)
	var rids []types.RecordID
	for i := 0; i < 20; i++ {
		rid, err := h.Insert(row(types.NewInt(int64(i)), types.NewText(big)))
		if err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
		rids = append(rids, rid)
	}

	numPages, err := h.NumPages()
	if err != nil {
		t.Fatalf("NumPages failed: %v", err)
	}
	if numPages < 2 {
		t.Errorf("expected multiple pages, got %d", numPages)
	}

	for i, rid := range rids {
		got, err := h.Get(rid)
		if err != nil {
			t.Fatalf("Get(%v) failed: %v", rid, err)
		}
		if !got.Values[0].Equal(types.NewInt(int64(i))) {
			t.Errorf("row %d: got %v", i, got.Values[0])
		}
	}
}

// TestHeapModelSequence drives insert/get/update/delete against an
// in-memory model and checks the full scan matches at the end.
func TestHeapModelSequence(t *testing.T) {
	h := newTestHeap(t)
	model := make(map[types.RecordID][]types.Value)

	for i := 0; i < 200; i++ {
		values := []types.Value{types.NewInt(int64(i)), types.NewText(fmt.Sprintf("row-%04d", i))}
		rid, err := h.Insert(row(values...))
		if err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
		model[rid] = values

		switch i % 5 {
		case 1:
			if err := h.Delete(rid); err != nil {
				t.Fatalf("Delete %v failed: %v", rid, err)
			}
			delete(model, rid)
		case 2:
			// Same-length text keeps the encoded size identical.
			updated := []types.Value{types.NewInt(int64(-i)), types.NewText(fmt.Sprintf("upd-%04d", i))}
			if err := h.Update(rid, row(updated...)); err != nil {
				t.Fatalf("Update %v failed: %v", rid, err)
			}
			model[rid] = updated
		}
	}

	// Full scan: every live (rid, row) pair matches the model exactly.
	numPages, err := h.NumPages()
	if err != nil {
		t.Fatalf("NumPages failed: %v", err)
	}
	seen := 0
	for pid := types.PageID(0); uint64(pid) < numPages; pid++ {
		slots, err := h.SlotCount(pid)
		if err != nil {
			t.Fatalf("SlotCount(%d) failed: %v", pid, err)
		}
		for slot := uint16(0); slot < slots; slot++ {
			rid := types.RecordID{Page: pid, Slot: slot}
			got, err := h.Get(rid)
			if errors.Is(err, ErrNotFound) {
				if _, live := model[rid]; live {
					t.Errorf("model says %v is live, heap says deleted", rid)
				}
				continue
			}
			if err != nil {
				t.Fatalf("Get(%v) failed: %v", rid, err)
			}
			want, live := model[rid]
			if !live {
				t.Errorf("heap has %v, model says deleted", rid)
				continue
			}
			for i := range want {
				if !got.Values[i].Equal(want[i]) {
					t.Errorf("%v value %d: got %v, want %v", rid, i, got.Values[i], want[i])
				}
			}
			seen++
		}
	}
	if seen != len(model) {
		t.Errorf("scan found %d live rows, model has %d", seen, len(model))
	}
}

func TestHeapApplyInsertAtIsPositionalAndIdempotent(t *testing.T) {
	h := newTestHeap(t)

	r := row(types.NewInt(7), types.NewText("seven"))
	rid := types.RecordID{Page: 0, Slot: 0}
	if err := h.ApplyInsertAt(rid, r); err != nil {
		t.Fatalf("ApplyInsertAt failed: %v", err)
	}
	// Reapplying the same record is a no-op.
	if err := h.ApplyInsertAt(rid, r); err != nil {
		t.Fatalf("second ApplyInsertAt failed: %v", err)
	}
	got, err := h.Get(rid)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Values[0].Equal(types.NewInt(7)) {
		t.Errorf("got %v", got.Values)
	}
	if n, _ := h.SlotCount(0); n != 1 {
		t.Errorf("slot count = %d after idempotent replay, want 1", n)
	}

	// A record logged for a later page allocates the gap.
	rid2 := types.RecordID{Page: 2, Slot: 0}
	if err := h.ApplyInsertAt(rid2, r); err != nil {
		t.Fatalf("ApplyInsertAt page 2 failed: %v", err)
	}
	numPages, _ := h.NumPages()
	if numPages != 3 {
		t.Errorf("NumPages = %d, want 3", numPages)
	}
}
