// Package catalog manages table metadata: schemas, stable table IDs, and the
// storage descriptors the pager uses to find heap files. The catalog is
// persisted as human-readable JSON under the data directory and is saved on
// every mutation.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wcygan/sql-database/pkg/types"
)

// DefaultFileName is the catalog filename under the data directory.
const DefaultFileName = "catalog.json"

var (
	ErrUnknownTable  = errors.New("catalog: unknown table")
	ErrDuplicateName = errors.New("catalog: table already exists")
	ErrReservedName  = errors.New("catalog: reserved identifier")
	ErrInvalidSchema = errors.New("catalog: invalid schema")
)

// reservedNames may not be used for tables or indexes.
var reservedNames = map[string]bool{
	"_catalog": true,
	"_primary": true,
}

// TableMeta holds everything the executor needs to know about a table.
type TableMeta struct {
	ID     types.TableID `json:"id"`
	Name   string        `json:"name"`
	Schema *Schema       `json:"schema"`

	// StorageFile is the heap file name relative to the data directory.
	StorageFile string `json:"storage_file"`
}

// Catalog maps table names and IDs to metadata, persisted to a JSON file.
type Catalog struct {
	mu     sync.RWMutex
	path   string
	tables []*TableMeta
	nextID types.TableID

	byName map[string]int
	byID   map[types.TableID]int
}

type catalogState struct {
	Tables []*TableMeta  `json:"tables"`
	NextID types.TableID `json:"next_id"`
}

// Open loads the catalog at path, or creates an empty one if the file does
// not exist yet.
func Open(path string) (*Catalog, error) {
	c := &Catalog{
		path:   path,
		nextID: 1,
		byName: make(map[string]int),
		byID:   make(map[types.TableID]int),
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read file: %w", err)
	}
	var state catalogState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("catalog: invalid catalog file: %w", err)
	}
	c.tables = state.Tables
	c.nextID = state.NextID
	if c.nextID == 0 {
		c.nextID = 1
	}
	for _, t := range c.tables {
		if t.Schema == nil {
			return nil, fmt.Errorf("catalog: table %q has no schema", t.Name)
		}
		if err := t.Schema.buildLookup(); err != nil {
			return nil, err
		}
		if err := t.Schema.validatePrimaryKey(); err != nil {
			return nil, err
		}
	}
	c.rebuildIndexes()
	return c, nil
}

// Path returns the catalog file path.
func (c *Catalog) Path() string { return c.path }

func (c *Catalog) rebuildIndexes() {
	c.byName = make(map[string]int, len(c.tables))
	c.byID = make(map[types.TableID]int, len(c.tables))
	for i, t := range c.tables {
		c.byName[t.Name] = i
		c.byID[t.ID] = i
	}
}

func (c *Catalog) save() error {
	state := catalogState{Tables: c.tables, NextID: c.nextID}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: serialize: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("catalog: write file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("catalog: replace file: %w", err)
	}
	return nil
}

// ValidateName rejects empty and reserved identifiers.
func ValidateName(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSchema)
	}
	if reservedNames[name] {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}

// NextTableID returns the ID the next created table will receive. The
// facade logs DDL before mutating the catalog, so it needs the ID up front.
func (c *Catalog) NextTableID() types.TableID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextID
}

// CreateTable registers a table and persists the catalog. The table ID is
// assigned from the monotonic counter.
func (c *Catalog) CreateTable(name string, schema *Schema) (*TableMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	return c.createLocked(name, schema, id, true)
}

// CreateTableWithID registers a table under a fixed ID. WAL replay uses this
// so a rebuilt catalog entry keeps the id its heap file was written under.
//
// A name that is already taken makes the call a no-op returning the existing
// table: redo replay hits this both when the record was already applied
// (same id) and when a later drop+recreate in the log superseded it
// (different id). Callers that need a duplicate to be an error — the facade's
// CREATE TABLE path — must check for the name before logging.
func (c *Catalog) CreateTableWithID(name string, schema *Schema, id types.TableID) (*TableMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name = strings.ToLower(strings.TrimSpace(name))
	if idx, ok := c.byName[name]; ok {
		return c.tables[idx], nil
	}
	if idx, ok := c.byID[id]; ok {
		return c.tables[idx], nil
	}
	return c.createLocked(name, schema, id, false)
}

func (c *Catalog) createLocked(name string, schema *Schema, id types.TableID, bump bool) (*TableMeta, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, exists := c.byName[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	meta := &TableMeta{
		ID:          id,
		Name:        name,
		Schema:      schema,
		StorageFile: fmt.Sprintf("table_%d.tbl", id),
	}
	c.tables = append(c.tables, meta)
	if bump {
		c.nextID++
	} else if id >= c.nextID {
		c.nextID = id + 1
	}
	c.rebuildIndexes()
	if err := c.save(); err != nil {
		c.tables = c.tables[:len(c.tables)-1]
		c.rebuildIndexes()
		return nil, err
	}
	return meta, nil
}

// DropTable removes a table by name and persists the catalog.
func (c *Catalog) DropTable(name string) (*TableMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name = strings.ToLower(strings.TrimSpace(name))
	idx, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	meta := c.tables[idx]
	c.tables = append(c.tables[:idx], c.tables[idx+1:]...)
	c.rebuildIndexes()
	if err := c.save(); err != nil {
		return nil, err
	}
	return meta, nil
}

// DropTableByID removes a table by id. Missing tables are a no-op so WAL
// replay stays idempotent.
func (c *Catalog) DropTableByID(id types.TableID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.byID[id]
	if !ok {
		return nil
	}
	c.tables = append(c.tables[:idx], c.tables[idx+1:]...)
	c.rebuildIndexes()
	return c.save()
}

// Table looks up a table by name.
func (c *Catalog) Table(name string) (*TableMeta, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return c.tables[idx], nil
}

// TableByID looks up a table by identifier.
func (c *Catalog) TableByID(id types.TableID) (*TableMeta, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownTable, id)
	}
	return c.tables[idx], nil
}

// Tables returns a snapshot of all table metadata in registration order.
func (c *Catalog) Tables() []*TableMeta {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*TableMeta, len(c.tables))
	copy(out, c.tables)
	return out
}

// StoragePath resolves a table's heap file under dataDir.
func (t *TableMeta) StoragePath(dataDir string) string {
	return filepath.Join(dataDir, t.StorageFile)
}
