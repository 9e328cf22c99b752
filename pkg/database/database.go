// Package database is the engine's single entry point: it owns the catalog,
// the buffer pool, and the WAL, replays the log on open, and turns SQL text
// into results. All statements on one Database are serialized through an
// exclusive lock, which is the engine's single-writer discipline.
package database

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/wcygan/sql-database/pkg/catalog"
	"github.com/wcygan/sql-database/pkg/executor"
	"github.com/wcygan/sql-database/pkg/sql"
	"github.com/wcygan/sql-database/pkg/storage"
	"github.com/wcygan/sql-database/pkg/types"
	"github.com/wcygan/sql-database/pkg/wal"
)

// Options configures a Database.
type Options struct {
	// DataDir is required; catalog, WAL, and heap files live under it.
	DataDir string

	// BufferPoolPages bounds the page cache; defaults to
	// storage.DefaultBufferPages.
	BufferPoolPages int

	// WALFileName defaults to wal.DefaultFileName.
	WALFileName string

	// CatalogFileName defaults to catalog.DefaultFileName.
	CatalogFileName string

	// Logger defaults to a no-op logger.
	Logger *zap.SugaredLogger
}

// ResultKind discriminates what a statement produced.
type ResultKind int

const (
	// KindRows is a row-returning result (SELECT).
	KindRows ResultKind = iota
	// KindCount is an affected-row count (INSERT/UPDATE/DELETE).
	KindCount
	// KindEmpty is a DDL acknowledgment.
	KindEmpty
)

// Result is what Execute returns for a successful statement.
type Result struct {
	Kind     ResultKind
	Columns  []string
	Rows     []types.Row
	Affected uint64
}

// Database owns the storage stack for one data directory.
type Database struct {
	mu sync.Mutex

	dataDir string
	catalog *catalog.Catalog
	pager   *storage.Pager
	wal     *wal.WAL
	planner *sql.Planner
	ctx     *executor.Context
	log     *zap.SugaredLogger

	closed bool
}

// Open loads (or initializes) the database under opts.DataDir: catalog
// first, then replay of the WAL (cutting off any torn tail), then the WAL
// is opened for appending, after which the instance is ready to serve
// statements.
func Open(opts Options) (*Database, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("database: data directory is required")
	}
	if opts.BufferPoolPages == 0 {
		opts.BufferPoolPages = storage.DefaultBufferPages
	}
	if opts.WALFileName == "" {
		opts.WALFileName = wal.DefaultFileName
	}
	if opts.CatalogFileName == "" {
		opts.CatalogFileName = catalog.DefaultFileName
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	pager, err := storage.NewPager(opts.DataDir, opts.BufferPoolPages, log)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Open(filepath.Join(opts.DataDir, opts.CatalogFileName))
	if err != nil {
		_ = pager.Close()
		return nil, err
	}
	db := &Database{
		dataDir: opts.DataDir,
		catalog: cat,
		pager:   pager,
		ctx:     executor.NewContext(cat, pager, nil, opts.DataDir, log),
		log:     log,
	}

	// Replay before the log is reopened for appending: a torn tail found
	// during replay is cut off so new records never land behind it.
	walPath := filepath.Join(opts.DataDir, opts.WALFileName)
	if err := db.replay(walPath); err != nil {
		_ = pager.Close()
		return nil, err
	}

	w, err := wal.Open(walPath)
	if err != nil {
		_ = pager.Close()
		return nil, err
	}
	db.wal = w
	db.ctx.WAL = w

	planner, err := sql.NewPlanner(cat)
	if err != nil {
		_ = w.Close()
		_ = pager.Close()
		return nil, err
	}
	db.planner = planner

	log.Infow("database open", "data_dir", opts.DataDir, "tables", len(cat.Tables()))
	return db, nil
}

// Execute runs one SQL statement and returns its result. Statements are
// serialized: the exclusive lock is held for the full duration, and a
// statement that returns has durably synced its WAL records.
func (db *Database) Execute(text string) (*Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, fmt.Errorf("database: closed")
	}

	stmt, err := db.planner.Plan(text)
	if err != nil {
		return nil, err
	}

	switch s := stmt.(type) {
	case sql.Query:
		root, err := executor.Build(s.Plan)
		if err != nil {
			return nil, err
		}
		rows, err := executor.ExecuteQuery(root, db.ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindRows, Columns: root.Schema(), Rows: rows}, nil

	case sql.Mutation:
		root, err := executor.Build(s.Plan)
		if err != nil {
			return nil, err
		}
		affected, err := executor.ExecuteDML(root, db.ctx)
		if err != nil {
			return nil, err
		}
		if err := db.pager.Flush(); err != nil {
			return nil, err
		}
		return &Result{Kind: KindCount, Affected: affected}, nil

	case sql.CreateTable:
		if err := db.createTable(s.Name, s.Schema); err != nil {
			return nil, err
		}
		return &Result{Kind: KindEmpty}, nil

	case sql.DropTable:
		if err := db.dropTable(s.Name); err != nil {
			return nil, err
		}
		return &Result{Kind: KindEmpty}, nil

	default:
		return nil, fmt.Errorf("database: unsupported statement %T", stmt)
	}
}

// createTable logs the DDL, syncs, then mutates the catalog and touches the
// heap file so the table exists on disk with zero pages.
func (db *Database) createTable(name string, schema *catalog.Schema) error {
	if err := catalog.ValidateName(name); err != nil {
		return err
	}
	if _, err := db.catalog.Table(name); err == nil {
		return fmt.Errorf("%w: %q", catalog.ErrDuplicateName, name)
	}
	id := db.catalog.NextTableID()

	columns := make([]wal.ColumnDef, len(schema.Columns))
	for i, col := range schema.Columns {
		columns[i] = wal.ColumnDef{Name: col.Name, Type: col.Type}
	}
	if err := db.logDDL(wal.NewCreateTableRecord(name, id, columns, schema.PrimaryKey)); err != nil {
		return err
	}
	if _, err := db.catalog.CreateTableWithID(name, schema, id); err != nil {
		return err
	}
	if _, err := db.pager.NumPages(id); err != nil {
		return err
	}
	db.log.Infow("created table", "name", name, "id", id)
	return nil
}

func (db *Database) dropTable(name string) error {
	meta, err := db.catalog.Table(name)
	if err != nil {
		return err
	}
	if err := db.logDDL(wal.NewDropTableRecord(meta.ID)); err != nil {
		return err
	}
	if _, err := db.catalog.DropTable(name); err != nil {
		return err
	}
	if err := db.pager.RemoveTable(meta.ID); err != nil {
		return err
	}
	db.ctx.DropPKIndex(meta.ID)
	db.log.Infow("dropped table", "name", name, "id", meta.ID)
	return nil
}

func (db *Database) logDDL(rec *wal.Record) error {
	if err := db.wal.Append(rec); err != nil {
		return err
	}
	return db.wal.Sync()
}

// Catalog exposes table metadata for shells and tools.
func (db *Database) Catalog() *catalog.Catalog { return db.catalog }

// Close flushes the buffer pool and closes the WAL.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true
	if db.planner != nil {
		db.planner.Close()
	}
	if err := db.pager.Close(); err != nil {
		_ = db.wal.Close()
		return err
	}
	return db.wal.Close()
}
