package executor

import (
	"errors"

	"github.com/wcygan/sql-database/pkg/storage"
	"github.com/wcygan/sql-database/pkg/types"
)

// SeqScanExec reads every live row of a table in page order, slot order.
// Tombstoned slots are skipped. Rows it produces carry their RecordID so
// that modify operators downstream can address storage.
//
// Page and slot counts are snapshotted at Open: rows appended while the scan
// runs (an update moving a row it just produced) are not visited, so a
// modify pipeline driven by this scan cannot chase its own writes.
type SeqScanExec struct {
	tableID types.TableID
	schema  []string

	heap      *storage.Heap
	slotCount []uint16
	curPage   types.PageID
	curSlot   uint16
}

// NewSeqScan creates a sequential scan over the table. The schema is the
// table's column names in ordinal order.
func NewSeqScan(tableID types.TableID, schema []string) *SeqScanExec {
	return &SeqScanExec{tableID: tableID, schema: schema}
}

func (s *SeqScanExec) Open(ctx *Context) error {
	if _, err := ctx.Catalog.TableByID(s.tableID); err != nil {
		return err
	}
	s.heap = ctx.Heap(s.tableID)
	numPages, err := s.heap.NumPages()
	if err != nil {
		return err
	}
	s.slotCount = make([]uint16, numPages)
	for pid := range s.slotCount {
		slots, err := s.heap.SlotCount(types.PageID(pid))
		if err != nil {
			return err
		}
		s.slotCount[pid] = slots
	}
	s.curPage = 0
	s.curSlot = 0
	return nil
}

func (s *SeqScanExec) Next(_ *Context) (types.Row, bool, error) {
	for {
		if uint64(s.curPage) >= uint64(len(s.slotCount)) {
			return types.Row{}, false, nil
		}
		if s.curSlot >= s.slotCount[s.curPage] {
			s.curPage++
			s.curSlot = 0
			continue
		}

		rid := types.RecordID{Page: s.curPage, Slot: s.curSlot}
		s.curSlot++
		row, err := s.heap.Get(rid)
		if errors.Is(err, storage.ErrNotFound) {
			continue // tombstone
		}
		if err != nil {
			return types.Row{}, false, err
		}
		return row, true, nil
	}
}

func (s *SeqScanExec) Close(_ *Context) error {
	s.heap = nil
	s.slotCount = nil
	return nil
}

func (s *SeqScanExec) Schema() []string { return s.schema }
