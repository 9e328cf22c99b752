package storage

import (
	"bytes"
	"os"
	"testing"

	"github.com/wcygan/sql-database/pkg/types"
)

func newTestPager(t *testing.T, capacity int) *Pager {
	t.Helper()
	p, err := NewPager(t.TempDir(), capacity, nil)
	if err != nil {
		t.Fatalf("NewPager failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPagerAllocateExtendsFile(t *testing.T) {
	p := newTestPager(t, 4)
	table := types.TableID(1)

	for want := types.PageID(0); want < 3; want++ {
		pid, err := p.AllocatePage(table)
		if err != nil {
			t.Fatalf("AllocatePage failed: %v", err)
		}
		if pid != want {
			t.Errorf("expected page id %d, got %d", want, pid)
		}
	}

	info, err := os.Stat(p.TablePath(table))
	if err != nil {
		t.Fatalf("stat table file: %v", err)
	}
	if info.Size() != 3*PageSize {
		t.Errorf("file is %d bytes, want %d", info.Size(), 3*PageSize)
	}

	n, err := p.NumPages(table)
	if err != nil {
		t.Fatalf("NumPages failed: %v", err)
	}
	if n != 3 {
		t.Errorf("NumPages = %d, want 3", n)
	}
}

func TestPagerLRUEviction(t *testing.T) {
	const capacity = 4
	p := newTestPager(t, capacity)
	table := types.TableID(1)

	for i := 0; i < 8; i++ {
		if _, err := p.AllocatePage(table); err != nil {
			t.Fatalf("AllocatePage failed: %v", err)
		}
	}

	// Touch pages 0..7 in order; only the last `capacity` stay resident.
	for pid := types.PageID(0); pid < 8; pid++ {
		if _, err := p.FetchPage(table, pid); err != nil {
			t.Fatalf("FetchPage(%d) failed: %v", pid, err)
		}
	}
	for pid := types.PageID(0); pid < 4; pid++ {
		if p.Resident(table, pid) {
			t.Errorf("page %d should have been evicted", pid)
		}
	}
	for pid := types.PageID(4); pid < 8; pid++ {
		if !p.Resident(table, pid) {
			t.Errorf("page %d should be resident", pid)
		}
	}

	// Re-touching an old page evicts the now-least-recent one (page 4).
	if _, err := p.FetchPage(table, 0); err != nil {
		t.Fatalf("FetchPage(0) failed: %v", err)
	}
	if !p.Resident(table, 0) {
		t.Error("page 0 should be resident after touch")
	}
	if p.Resident(table, 4) {
		t.Error("page 4 should have been evicted")
	}
}

func TestPagerDirtyEvictionWritesBack(t *testing.T) {
	p := newTestPager(t, 2)
	table := types.TableID(7)

	if _, err := p.AllocatePage(table); err != nil {
		t.Fatalf("AllocatePage failed: %v", err)
	}
	page, err := p.FetchPage(table, 0)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	slot, err := page.InsertTuple([]byte("dirty data"))
	if err != nil {
		t.Fatalf("InsertTuple failed: %v", err)
	}
	p.MarkDirty(table, 0)

	// Force page 0 out of the cache.
	for i := 1; i <= 2; i++ {
		if _, err := p.AllocatePage(table); err != nil {
			t.Fatalf("AllocatePage failed: %v", err)
		}
	}
	if p.Resident(table, 0) {
		t.Fatal("page 0 still resident, eviction did not happen")
	}

	// The disk bytes must reflect the mutation.
	reread, err := p.FetchPage(table, 0)
	if err != nil {
		t.Fatalf("FetchPage after eviction failed: %v", err)
	}
	got, err := reread.ReadTuple(slot)
	if err != nil {
		t.Fatalf("ReadTuple after eviction failed: %v", err)
	}
	if !bytes.Equal(got, []byte("dirty data")) {
		t.Errorf("dirty eviction lost data: got %q", got)
	}
}

func TestPagerFlushClearsDirtySet(t *testing.T) {
	p := newTestPager(t, 4)
	table := types.TableID(1)

	if _, err := p.AllocatePage(table); err != nil {
		t.Fatalf("AllocatePage failed: %v", err)
	}
	page, err := p.FetchPage(table, 0)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if _, err := page.InsertTuple([]byte("persist me")); err != nil {
		t.Fatalf("InsertTuple failed: %v", err)
	}
	p.MarkDirty(table, 0)

	if err := p.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Read the raw file: the tuple bytes must be on disk.
	raw, err := os.ReadFile(p.TablePath(table))
	if err != nil {
		t.Fatalf("read table file: %v", err)
	}
	if !bytes.Contains(raw, []byte("persist me")) {
		t.Error("flushed page not found on disk")
	}
}

func TestPagerRemoveTable(t *testing.T) {
	p := newTestPager(t, 4)
	table := types.TableID(3)

	if _, err := p.AllocatePage(table); err != nil {
		t.Fatalf("AllocatePage failed: %v", err)
	}
	if err := p.RemoveTable(table); err != nil {
		t.Fatalf("RemoveTable failed: %v", err)
	}
	if _, err := os.Stat(p.TablePath(table)); !os.IsNotExist(err) {
		t.Errorf("table file still exists: %v", err)
	}
	if p.Resident(table, 0) {
		t.Error("removed table still has cached pages")
	}
}

func TestPagerRejectsZeroCapacity(t *testing.T) {
	if _, err := NewPager(t.TempDir(), 0, nil); err == nil {
		t.Error("expected error for zero capacity")
	}
}
