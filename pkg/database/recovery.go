package database

import (
	"errors"
	"fmt"

	"github.com/wcygan/sql-database/pkg/catalog"
	"github.com/wcygan/sql-database/pkg/storage"
	"github.com/wcygan/sql-database/pkg/types"
	"github.com/wcygan/sql-database/pkg/wal"
)

// replay re-applies the WAL to storage and the catalog. Records are applied
// positionally and no-op when their effect is already present, so replaying
// onto a fully-applied heap (a clean restart) and onto a truncated heap (a
// crash between WAL sync and page write-back) both converge on the logged
// state. A torn trailing frame ends replay; a corrupt internal frame aborts
// the open.
func (db *Database) replay(walPath string) error {
	var applied int
	validLen, err := wal.Replay(walPath, func(rec *wal.Record) error {
		applied++
		switch rec.Type {
		case wal.RecordCreateTable:
			return db.replayCreateTable(rec)
		case wal.RecordDropTable:
			if err := db.catalog.DropTableByID(rec.Table); err != nil {
				return err
			}
			db.ctx.DropPKIndex(rec.Table)
			return db.pager.RemoveTable(rec.Table)
		case wal.RecordInsert:
			heap := db.ctx.Heap(rec.Table)
			return heap.ApplyInsertAt(rec.RID, types.Row{Values: rec.Row})
		case wal.RecordUpdate:
			return db.replayUpdate(rec)
		case wal.RecordDelete:
			heap := db.ctx.Heap(rec.Table)
			err := heap.Delete(rec.RID)
			if errors.Is(err, storage.ErrNotFound) {
				return nil // already tombstoned
			}
			return err
		default:
			return fmt.Errorf("database: replay: unknown record type %d", rec.Type)
		}
	})
	if err != nil {
		return fmt.Errorf("database: wal replay: %w", err)
	}
	if err := wal.TruncateTo(walPath, validLen); err != nil {
		return err
	}
	if applied > 0 {
		db.log.Infow("replayed wal", "records", applied)
	}
	return db.pager.Flush()
}

func (db *Database) replayCreateTable(rec *wal.Record) error {
	columns := make([]catalog.Column, len(rec.Columns))
	for i, col := range rec.Columns {
		columns[i] = catalog.NewColumn(col.Name, col.Type)
	}
	schema, err := catalog.NewSchema(columns, rec.PrimaryKey)
	if err != nil {
		return err
	}
	// No-ops when the catalog file already has the table under this id.
	if _, err := db.catalog.CreateTableWithID(rec.Name, schema, rec.Table); err != nil {
		return err
	}
	_, err = db.pager.NumPages(rec.Table)
	return err
}

// replayUpdate mirrors the executor's update path: same-size rows rewrite in
// place, size-changing rows move via delete+insert. A missing or tombstoned
// target means the record was fully applied before the crash.
func (db *Database) replayUpdate(rec *wal.Record) error {
	heap := db.ctx.Heap(rec.Table)
	row := types.Row{Values: rec.Row}

	err := heap.Update(rec.RID, row)
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrSizeMismatch) {
		if err := heap.Delete(rec.RID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		_, err := heap.Insert(row)
		return err
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
