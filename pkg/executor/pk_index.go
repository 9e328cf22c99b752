package executor

import (
	"errors"
	"fmt"

	"github.com/wcygan/sql-database/pkg/storage"
	"github.com/wcygan/sql-database/pkg/types"
)

// PrimaryKeyIndex maps encoded key tuples to record IDs for one table. Keys
// are the values at the declared PK ordinals, serialized with the
// deterministic tuple codec so equal tuples produce equal map keys.
//
// The index lives only in memory: it is rebuilt from a heap scan the first
// time a table is touched after process start and maintained on every DML.
type PrimaryKeyIndex struct {
	pkColumns []types.ColumnID
	index     map[string]types.RecordID
}

// NewPrimaryKeyIndex creates an empty index over the given ordinals.
func NewPrimaryKeyIndex(pkColumns []types.ColumnID) *PrimaryKeyIndex {
	return &PrimaryKeyIndex{
		pkColumns: pkColumns,
		index:     make(map[string]types.RecordID),
	}
}

// Columns returns the PK column ordinals in declared order.
func (idx *PrimaryKeyIndex) Columns() []types.ColumnID { return idx.pkColumns }

// Len returns the number of indexed keys.
func (idx *PrimaryKeyIndex) Len() int { return len(idx.index) }

// ExtractKey serializes the row's PK values into the index key form.
func (idx *PrimaryKeyIndex) ExtractKey(row types.Row) (string, error) {
	key := make([]types.Value, 0, len(idx.pkColumns))
	for _, ord := range idx.pkColumns {
		if int(ord) >= len(row.Values) {
			return "", fmt.Errorf("executor: PK column %d out of bounds (row has %d columns)",
				ord, len(row.Values))
		}
		key = append(key, row.Values[ord])
	}
	return storage.EncodeKey(key)
}

// Contains reports whether the key is present.
func (idx *PrimaryKeyIndex) Contains(key string) bool {
	_, ok := idx.index[key]
	return ok
}

// Insert adds a key, failing if it is already present.
func (idx *PrimaryKeyIndex) Insert(key string, rid types.RecordID) error {
	if _, ok := idx.index[key]; ok {
		return ErrDuplicateKey
	}
	idx.index[key] = rid
	return nil
}

// Remove deletes a key. Absent keys are a no-op.
func (idx *PrimaryKeyIndex) Remove(key string) {
	delete(idx.index, key)
}

// Move points an existing key at a new record ID. Updates never change the
// key itself (PK columns are immutable), but a length-changing update moves
// the row to a new slot.
func (idx *PrimaryKeyIndex) Move(key string, rid types.RecordID) {
	if _, ok := idx.index[key]; ok {
		idx.index[key] = rid
	}
}

// Build populates the index from a full heap scan of the table's live rows.
func (idx *PrimaryKeyIndex) Build(heap *storage.Heap) error {
	numPages, err := heap.NumPages()
	if err != nil {
		return err
	}
	for pid := types.PageID(0); uint64(pid) < numPages; pid++ {
		slots, err := heap.SlotCount(pid)
		if err != nil {
			return err
		}
		for slot := uint16(0); slot < slots; slot++ {
			rid := types.RecordID{Page: pid, Slot: slot}
			row, err := heap.Get(rid)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			key, err := idx.ExtractKey(row)
			if err != nil {
				return err
			}
			if err := idx.Insert(key, rid); err != nil {
				return fmt.Errorf("executor: rebuilding PK index for table %d: %w", heap.Table(), err)
			}
		}
	}
	return nil
}
