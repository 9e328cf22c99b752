package types

// PageID is the zero-based index of a page within a table's heap file.
type PageID uint64

// TableID is the stable identifier the catalog assigns to a table.
type TableID uint64

// ColumnID is the zero-based ordinal of a column within a schema.
type ColumnID uint16

// RecordID addresses a tuple: a page within a table file plus a slot within
// that page. Both components are stable under inserts and deletes on the
// same page.
type RecordID struct {
	Page PageID
	Slot uint16
}

// Row is an ordered sequence of values matching a table's column order.
// Rows produced by a scan carry the RecordID they were read from so that
// modify operators downstream can address storage; synthesized rows
// (projections, DML counts) carry none.
type Row struct {
	Values []Value

	rid    RecordID
	hasRID bool
}

// NewRow builds a row with no storage identity.
func NewRow(values ...Value) Row {
	return Row{Values: values}
}

// WithRID returns a copy of the row tagged with its storage address.
func (r Row) WithRID(rid RecordID) Row {
	r.rid = rid
	r.hasRID = true
	return r
}

// RID returns the row's storage address, if it has one.
func (r Row) RID() (RecordID, bool) {
	return r.rid, r.hasRID
}

// Clone deep-copies the value slice; the RID tag is preserved.
func (r Row) Clone() Row {
	values := make([]Value, len(r.Values))
	copy(values, r.Values)
	out := Row{Values: values, rid: r.rid, hasRID: r.hasRID}
	return out
}

// RecordBatch is a rectangular result set: column labels plus rows.
type RecordBatch struct {
	Columns []string
	Rows    []Row
}
