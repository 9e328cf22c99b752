// Package storage implements the on-disk layout of the engine: slotted 4 KiB
// heap pages, the deterministic tuple codec, the per-table heap file API,
// and the buffer pool that mediates all page I/O.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/wcygan/sql-database/pkg/types"
)

// PageSize is the fixed size of every page in a heap file.
const PageSize = 4096

// Page layout:
//
//	0-1: numSlots (uint16)
//	2-3: freeOffset (uint16) - offset where the tuple area begins; tuples
//	     are packed from the end of the page downward, so the free region
//	     is [headerSize + numSlots*slotSize, freeOffset).
//	then: slot directory, numSlots entries of (offset uint16, length uint16)
//
// A slot with length == 0 is a tombstone. Slots are append-only: indices
// never shift, so a RecordID stays valid for the lifetime of the page.
const (
	headerSize = 4
	slotSize   = 4
)

var (
	ErrNoSpace      = errors.New("storage: no space on page")
	ErrInvalidSlot  = errors.New("storage: invalid slot")
	ErrTupleDeleted = errors.New("storage: tuple deleted")
	ErrSizeMismatch = errors.New("storage: tuple size mismatch")
	ErrNotFound     = errors.New("storage: record not found")
)

// Page is a fixed-size byte buffer plus its position in the heap file.
type Page struct {
	ID   types.PageID
	Data []byte
}

// NewPage returns an initialized empty page.
func NewPage(id types.PageID) *Page {
	p := &Page{ID: id, Data: make([]byte, PageSize)}
	binary.LittleEndian.PutUint16(p.Data[2:4], PageSize)
	return p
}

// PageFromBytes wraps an existing page-sized buffer.
func PageFromBytes(id types.PageID, data []byte) (*Page, error) {
	if len(data) != PageSize {
		return nil, fmt.Errorf("storage: page buffer is %d bytes, want %d", len(data), PageSize)
	}
	return &Page{ID: id, Data: data}, nil
}

// NumSlots returns the number of slot directory entries, tombstones included.
func (p *Page) NumSlots() uint16 {
	return binary.LittleEndian.Uint16(p.Data[0:2])
}

func (p *Page) freeOffset() uint16 {
	return binary.LittleEndian.Uint16(p.Data[2:4])
}

func (p *Page) setHeader(numSlots, freeOffset uint16) {
	binary.LittleEndian.PutUint16(p.Data[0:2], numSlots)
	binary.LittleEndian.PutUint16(p.Data[2:4], freeOffset)
}

func (p *Page) slot(i uint16) (offset, length uint16) {
	base := headerSize + int(i)*slotSize
	offset = binary.LittleEndian.Uint16(p.Data[base : base+2])
	length = binary.LittleEndian.Uint16(p.Data[base+2 : base+4])
	return offset, length
}

func (p *Page) setSlot(i uint16, offset, length uint16) {
	base := headerSize + int(i)*slotSize
	binary.LittleEndian.PutUint16(p.Data[base:base+2], offset)
	binary.LittleEndian.PutUint16(p.Data[base+2:base+4], length)
}

// FreeSpace returns the bytes available between the slot directory and the
// tuple area. A new tuple additionally consumes one slot entry.
func (p *Page) FreeSpace() int {
	slotsEnd := headerSize + int(p.NumSlots())*slotSize
	return int(p.freeOffset()) - slotsEnd
}

// CanFit reports whether a tuple of the given length fits on the page.
func (p *Page) CanFit(n int) bool {
	return p.FreeSpace() >= n+slotSize
}

// InsertTuple writes the tuple into the tuple area and appends a slot entry
// for it, returning the assigned slot index. Tombstoned slots are never
// reused; record addresses must stay stable.
func (p *Page) InsertTuple(data []byte) (uint16, error) {
	if len(data) > PageSize-headerSize-slotSize {
		return 0, ErrNoSpace
	}
	numSlots := p.NumSlots()
	if numSlots == ^uint16(0) {
		return 0, ErrNoSpace
	}
	if !p.CanFit(len(data)) {
		return 0, ErrNoSpace
	}

	newOffset := p.freeOffset() - uint16(len(data))
	copy(p.Data[newOffset:p.freeOffset()], data)
	p.setSlot(numSlots, newOffset, uint16(len(data)))
	p.setHeader(numSlots+1, newOffset)
	return numSlots, nil
}

// ReadTuple returns a copy of the tuple bytes at the slot.
func (p *Page) ReadTuple(slot uint16) ([]byte, error) {
	if slot >= p.NumSlots() {
		return nil, ErrInvalidSlot
	}
	offset, length := p.slot(slot)
	if length == 0 {
		return nil, ErrTupleDeleted
	}
	if int(offset)+int(length) > PageSize {
		return nil, fmt.Errorf("storage: corrupt slot %d on page %d", slot, p.ID)
	}
	out := make([]byte, length)
	copy(out, p.Data[offset:offset+length])
	return out, nil
}

// TupleLen returns the stored length of a live tuple.
func (p *Page) TupleLen(slot uint16) (uint16, error) {
	if slot >= p.NumSlots() {
		return 0, ErrInvalidSlot
	}
	_, length := p.slot(slot)
	if length == 0 {
		return 0, ErrTupleDeleted
	}
	return length, nil
}

// UpdateTupleInPlace rewrites a tuple whose encoded length is unchanged.
// Length-changing updates are delete+insert at the heap layer.
func (p *Page) UpdateTupleInPlace(slot uint16, data []byte) error {
	if slot >= p.NumSlots() {
		return ErrInvalidSlot
	}
	offset, length := p.slot(slot)
	if length == 0 {
		return ErrTupleDeleted
	}
	if int(length) != len(data) {
		return ErrSizeMismatch
	}
	copy(p.Data[offset:int(offset)+len(data)], data)
	return nil
}

// DeleteTuple tombstones a slot. The tuple bytes and the slot's offset are
// left in place; space is reclaimed only when the table is dropped.
func (p *Page) DeleteTuple(slot uint16) error {
	if slot >= p.NumSlots() {
		return ErrInvalidSlot
	}
	offset, length := p.slot(slot)
	if length == 0 {
		return ErrTupleDeleted
	}
	p.setSlot(slot, offset, 0)
	return nil
}
