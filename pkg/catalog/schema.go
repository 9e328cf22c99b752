package catalog

import (
	"fmt"
	"strings"

	"github.com/wcygan/sql-database/pkg/types"
)

// Column describes one logical column of a table.
type Column struct {
	Name string        `json:"name"`
	Type types.SqlType `json:"type"`
}

// NewColumn normalizes the name to lowercase, which is the canonical form
// used everywhere after parsing.
func NewColumn(name string, ty types.SqlType) Column {
	return Column{Name: strings.ToLower(name), Type: ty}
}

// Schema is an ordered column list plus lookup structures and an optional
// primary-key declaration (column ordinals in declared order).
type Schema struct {
	Columns    []Column        `json:"columns"`
	PrimaryKey []types.ColumnID `json:"primary_key,omitempty"`

	nameToOrdinal map[string]types.ColumnID
}

// NewSchema validates the column list and primary key declaration.
func NewSchema(columns []Column, primaryKey []types.ColumnID) (*Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table must contain at least one column", ErrInvalidSchema)
	}
	if len(columns) > int(^uint16(0)) {
		return nil, fmt.Errorf("%w: too many columns for a single table", ErrInvalidSchema)
	}
	s := &Schema{Columns: columns, PrimaryKey: primaryKey}
	if err := s.buildLookup(); err != nil {
		return nil, err
	}
	if err := s.validatePrimaryKey(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) buildLookup() error {
	s.nameToOrdinal = make(map[string]types.ColumnID, len(s.Columns))
	for i, col := range s.Columns {
		name := strings.ToLower(col.Name)
		if _, dup := s.nameToOrdinal[name]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidSchema, name)
		}
		s.Columns[i].Name = name
		s.nameToOrdinal[name] = types.ColumnID(i)
	}
	return nil
}

func (s *Schema) validatePrimaryKey() error {
	if s.PrimaryKey == nil {
		return nil
	}
	if len(s.PrimaryKey) == 0 {
		return fmt.Errorf("%w: primary key must name at least one column", ErrInvalidSchema)
	}
	seen := make(map[types.ColumnID]bool, len(s.PrimaryKey))
	for _, ord := range s.PrimaryKey {
		if int(ord) >= len(s.Columns) {
			return fmt.Errorf("%w: primary key ordinal %d out of range", ErrInvalidSchema, ord)
		}
		if seen[ord] {
			return fmt.Errorf("%w: duplicate primary key ordinal %d", ErrInvalidSchema, ord)
		}
		seen[ord] = true
	}
	return nil
}

// ColumnIndex returns the ordinal for a column name.
func (s *Schema) ColumnIndex(name string) (types.ColumnID, bool) {
	ord, ok := s.nameToOrdinal[strings.ToLower(name)]
	return ord, ok
}

// ColumnNames returns the column names in ordinal order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// HasPrimaryKey reports whether the table declares a primary key.
func (s *Schema) HasPrimaryKey() bool {
	return len(s.PrimaryKey) > 0
}

// IsPrimaryKeyColumn reports whether the ordinal belongs to the primary key.
func (s *Schema) IsPrimaryKeyColumn(ord types.ColumnID) bool {
	for _, pk := range s.PrimaryKey {
		if pk == ord {
			return true
		}
	}
	return false
}
