package storage

import (
	"errors"
	"fmt"

	"github.com/wcygan/sql-database/pkg/types"
)

// Heap exposes a table-level record API on top of the pager. All page access
// goes through the buffer pool; the heap itself holds no file handles.
type Heap struct {
	table types.TableID
	pager *Pager
}

// NewHeap binds a table to the pager.
func NewHeap(pager *Pager, table types.TableID) *Heap {
	return &Heap{table: table, pager: pager}
}

// Table returns the table this heap belongs to.
func (h *Heap) Table() types.TableID { return h.table }

// NumPages returns the current page count of the heap file.
func (h *Heap) NumPages() (uint64, error) {
	return h.pager.NumPages(h.table)
}

// SlotCount returns the slot directory size of a page, tombstones included.
func (h *Heap) SlotCount(pid types.PageID) (uint16, error) {
	page, err := h.pager.FetchPage(h.table, pid)
	if err != nil {
		return 0, err
	}
	return page.NumSlots(), nil
}

// Insert appends a row, trying the last allocated page first and allocating
// a fresh page when it does not fit. Earlier pages are never revisited;
// deletes do not reclaim space.
func (h *Heap) Insert(row types.Row) (types.RecordID, error) {
	data, err := EncodeRow(row.Values)
	if err != nil {
		return types.RecordID{}, err
	}

	numPages, err := h.NumPages()
	if err != nil {
		return types.RecordID{}, err
	}

	var pid types.PageID
	if numPages == 0 {
		pid, err = h.pager.AllocatePage(h.table)
		if err != nil {
			return types.RecordID{}, err
		}
	} else {
		pid = types.PageID(numPages - 1)
	}

	page, err := h.pager.FetchPage(h.table, pid)
	if err != nil {
		return types.RecordID{}, err
	}
	slot, err := page.InsertTuple(data)
	if errors.Is(err, ErrNoSpace) {
		pid, err = h.pager.AllocatePage(h.table)
		if err != nil {
			return types.RecordID{}, err
		}
		page, err = h.pager.FetchPage(h.table, pid)
		if err != nil {
			return types.RecordID{}, err
		}
		slot, err = page.InsertTuple(data)
	}
	if err != nil {
		return types.RecordID{}, err
	}
	h.pager.MarkDirty(h.table, pid)
	return types.RecordID{Page: pid, Slot: slot}, nil
}

// Get reads the live row at rid. Out-of-range pages, out-of-range slots, and
// tombstones all report ErrNotFound.
func (h *Heap) Get(rid types.RecordID) (types.Row, error) {
	page, err := h.fetchExisting(rid.Page)
	if err != nil {
		return types.Row{}, err
	}
	data, err := page.ReadTuple(rid.Slot)
	if errors.Is(err, ErrInvalidSlot) || errors.Is(err, ErrTupleDeleted) {
		return types.Row{}, ErrNotFound
	}
	if err != nil {
		return types.Row{}, err
	}
	values, err := DecodeRow(data)
	if err != nil {
		return types.Row{}, err
	}
	return types.Row{Values: values}.WithRID(rid), nil
}

// Update rewrites the row at rid in place. If the encoded length changed it
// returns ErrSizeMismatch and the caller falls back to delete+insert.
func (h *Heap) Update(rid types.RecordID, row types.Row) error {
	data, err := EncodeRow(row.Values)
	if err != nil {
		return err
	}
	page, err := h.fetchExisting(rid.Page)
	if err != nil {
		return err
	}
	err = page.UpdateTupleInPlace(rid.Slot, data)
	if errors.Is(err, ErrInvalidSlot) || errors.Is(err, ErrTupleDeleted) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	h.pager.MarkDirty(h.table, rid.Page)
	return nil
}

// Delete tombstones the slot at rid. The slot index stays allocated so
// record IDs remain stable.
func (h *Heap) Delete(rid types.RecordID) error {
	page, err := h.fetchExisting(rid.Page)
	if err != nil {
		return err
	}
	err = page.DeleteTuple(rid.Slot)
	if errors.Is(err, ErrInvalidSlot) || errors.Is(err, ErrTupleDeleted) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	h.pager.MarkDirty(h.table, rid.Page)
	return nil
}

// ApplyInsertAt reproduces a logged insert during WAL replay. Pages are
// allocated up to rid.Page if missing; if the slot directory already covers
// rid.Slot the record was applied before the crash and the call is a no-op.
// The append must land on the logged slot, which deterministic allocation
// guarantees when the log is replayed in order.
func (h *Heap) ApplyInsertAt(rid types.RecordID, row types.Row) error {
	numPages, err := h.NumPages()
	if err != nil {
		return err
	}
	for numPages <= uint64(rid.Page) {
		if _, err := h.pager.AllocatePage(h.table); err != nil {
			return err
		}
		numPages++
	}
	page, err := h.pager.FetchPage(h.table, rid.Page)
	if err != nil {
		return err
	}
	if rid.Slot < page.NumSlots() {
		return nil
	}
	data, err := EncodeRow(row.Values)
	if err != nil {
		return err
	}
	slot, err := page.InsertTuple(data)
	if err != nil {
		return err
	}
	if slot != rid.Slot {
		return fmt.Errorf("storage: replay insert landed on slot %d, log says %d", slot, rid.Slot)
	}
	h.pager.MarkDirty(h.table, rid.Page)
	return nil
}

func (h *Heap) fetchExisting(pid types.PageID) (*Page, error) {
	numPages, err := h.NumPages()
	if err != nil {
		return nil, err
	}
	if uint64(pid) >= numPages {
		return nil, ErrNotFound
	}
	return h.pager.FetchPage(h.table, pid)
}
