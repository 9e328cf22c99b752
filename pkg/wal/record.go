// Package wal provides the write-ahead log: an append-only file of logical,
// redo-only records written and fsynced before the corresponding data-file
// change. On startup the log is replayed from the beginning to bring the
// heap files back in line with everything that was acknowledged.
package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/wcygan/sql-database/pkg/storage"
	"github.com/wcygan/sql-database/pkg/types"
)

// RecordType identifies the kind of logged mutation.
type RecordType uint8

const (
	RecordInvalid RecordType = iota
	RecordInsert
	RecordUpdate
	RecordDelete
	RecordCreateTable
	RecordDropTable
)

// String returns the name of the record type.
func (rt RecordType) String() string {
	switch rt {
	case RecordInsert:
		return "INSERT"
	case RecordUpdate:
		return "UPDATE"
	case RecordDelete:
		return "DELETE"
	case RecordCreateTable:
		return "CREATE_TABLE"
	case RecordDropTable:
		return "DROP_TABLE"
	default:
		return "INVALID"
	}
}

// ColumnDef carries the schema fragment a CreateTable record needs so replay
// can rebuild a catalog entry that was lost with the catalog file.
type ColumnDef struct {
	Name string
	Type types.SqlType
}

// Record is a single logical WAL entry.
//
// Frame format on disk:
//
//	[Length:4 LE][Type:1][Table:8][Page:8][Slot:2][NameLen:2][Name]
//	[RowLen:4][RowBytes][ColCount:2][{NameLen:2}{Name}{Type:1}...]
//	[PKCount:2][{Ordinal:2}...][CRC32:4]
//
// Length covers everything after the length field, checksum included. The
// row payload reuses the storage tuple codec so replay and normal writes
// produce identical bytes.
type Record struct {
	Type  RecordType
	Table types.TableID
	RID   types.RecordID

	// Row holds the inserted row or the post-image of an update.
	Row []types.Value

	// DDL payload.
	Name       string
	Columns    []ColumnDef
	PrimaryKey []types.ColumnID
}

var (
	ErrClosed        = errors.New("wal: log is closed")
	ErrCorruptRecord = errors.New("wal: corrupted record")
)

// NewInsertRecord describes a completed heap insert.
func NewInsertRecord(table types.TableID, row []types.Value, rid types.RecordID) *Record {
	return &Record{Type: RecordInsert, Table: table, Row: row, RID: rid}
}

// NewUpdateRecord describes an update's post-image at rid.
func NewUpdateRecord(table types.TableID, rid types.RecordID, newRow []types.Value) *Record {
	return &Record{Type: RecordUpdate, Table: table, RID: rid, Row: newRow}
}

// NewDeleteRecord describes a tombstoned record.
func NewDeleteRecord(table types.TableID, rid types.RecordID) *Record {
	return &Record{Type: RecordDelete, Table: table, RID: rid}
}

// NewCreateTableRecord describes a table creation with its assigned id.
func NewCreateTableRecord(name string, table types.TableID, columns []ColumnDef, pk []types.ColumnID) *Record {
	return &Record{Type: RecordCreateTable, Table: table, Name: name, Columns: columns, PrimaryKey: pk}
}

// NewDropTableRecord describes a table drop.
func NewDropTableRecord(table types.TableID) *Record {
	return &Record{Type: RecordDropTable, Table: table}
}

// Encode serializes the record as a complete frame, length prefix and
// checksum included.
func (r *Record) Encode() ([]byte, error) {
	if len(r.Name) > int(^uint16(0)) {
		return nil, fmt.Errorf("wal: table name too long")
	}

	var rowBytes []byte
	if r.Row != nil {
		var err error
		rowBytes, err = storage.EncodeRow(r.Row)
		if err != nil {
			return nil, fmt.Errorf("wal: encode row: %w", err)
		}
	}

	payload := make([]byte, 0, 64+len(r.Name)+len(rowBytes))
	payload = append(payload, byte(r.Type))
	payload = appendUint64(payload, uint64(r.Table))
	payload = appendUint64(payload, uint64(r.RID.Page))
	payload = appendUint16(payload, r.RID.Slot)
	payload = appendUint16(payload, uint16(len(r.Name)))
	payload = append(payload, r.Name...)
	payload = appendUint32(payload, uint32(len(rowBytes)))
	payload = append(payload, rowBytes...)
	payload = appendUint16(payload, uint16(len(r.Columns)))
	for _, col := range r.Columns {
		if len(col.Name) > int(^uint16(0)) {
			return nil, fmt.Errorf("wal: column name too long")
		}
		payload = appendUint16(payload, uint16(len(col.Name)))
		payload = append(payload, col.Name...)
		payload = append(payload, byte(col.Type))
	}
	payload = appendUint16(payload, uint16(len(r.PrimaryKey)))
	for _, ord := range r.PrimaryKey {
		payload = appendUint16(payload, uint16(ord))
	}

	crc := crc32.ChecksumIEEE(payload)

	frame := make([]byte, 0, 4+len(payload)+4)
	frame = appendUint32(frame, uint32(len(payload)+4))
	frame = append(frame, payload...)
	frame = appendUint32(frame, crc)
	return frame, nil
}

// DecodeRecord deserializes a frame body (everything after the length
// prefix, checksum included).
func DecodeRecord(body []byte) (*Record, error) {
	if len(body) < 4 {
		return nil, ErrCorruptRecord
	}
	payload := body[:len(body)-4]
	wantCRC := binary.LittleEndian.Uint32(body[len(body)-4:])
	if crc32.ChecksumIEEE(payload) != wantCRC {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptRecord)
	}

	d := decoder{buf: payload}
	r := &Record{}
	r.Type = RecordType(d.byte())
	r.Table = types.TableID(d.uint64())
	r.RID.Page = types.PageID(d.uint64())
	r.RID.Slot = d.uint16()
	r.Name = string(d.bytes(int(d.uint16())))
	rowLen := int(d.uint32())
	if rowLen > 0 {
		values, err := storage.DecodeRow(d.bytes(rowLen))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		r.Row = values
	}
	colCount := int(d.uint16())
	if colCount > 0 {
		r.Columns = make([]ColumnDef, 0, colCount)
		for i := 0; i < colCount; i++ {
			name := string(d.bytes(int(d.uint16())))
			ty := types.SqlType(d.byte())
			r.Columns = append(r.Columns, ColumnDef{Name: name, Type: ty})
		}
	}
	pkCount := int(d.uint16())
	if pkCount > 0 {
		r.PrimaryKey = make([]types.ColumnID, 0, pkCount)
		for i := 0; i < pkCount; i++ {
			r.PrimaryKey = append(r.PrimaryKey, types.ColumnID(d.uint16()))
		}
	}
	if d.failed {
		return nil, ErrCorruptRecord
	}
	switch r.Type {
	case RecordInsert, RecordUpdate, RecordDelete, RecordCreateTable, RecordDropTable:
	default:
		return nil, fmt.Errorf("%w: unknown record type %d", ErrCorruptRecord, r.Type)
	}
	return r, nil
}

// decoder walks a payload buffer, latching a failure on any short read so
// call sites stay linear.
type decoder struct {
	buf    []byte
	pos    int
	failed bool
}

func (d *decoder) take(n int) []byte {
	if d.failed || d.pos+n > len(d.buf) {
		d.failed = true
		return make([]byte, n)
	}
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out
}

func (d *decoder) byte() byte         { return d.take(1)[0] }
func (d *decoder) bytes(n int) []byte { return d.take(n) }
func (d *decoder) uint16() uint16     { return binary.LittleEndian.Uint16(d.take(2)) }
func (d *decoder) uint32() uint32     { return binary.LittleEndian.Uint32(d.take(4)) }
func (d *decoder) uint64() uint64     { return binary.LittleEndian.Uint64(d.take(8)) }

func appendUint16(b []byte, v uint16) []byte {
	var scratch [2]byte
	binary.LittleEndian.PutUint16(scratch[:], v)
	return append(b, scratch[:]...)
}

func appendUint32(b []byte, v uint32) []byte {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], v)
	return append(b, scratch[:]...)
}

func appendUint64(b []byte, v uint64) []byte {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], v)
	return append(b, scratch[:]...)
}
