// Package plan defines the physical plan nodes the executor consumes. Plans
// are fully resolved: tables are IDs, columns are ordinals, and expressions
// are expr.Resolved trees. The planner in pkg/sql produces them; nothing in
// this package touches the catalog.
package plan

import (
	"github.com/wcygan/sql-database/pkg/expr"
	"github.com/wcygan/sql-database/pkg/types"
)

// Node is a physical plan node.
type Node interface{ planNode() }

// SeqScan reads every live row of a table in page order, slot order.
type SeqScan struct {
	TableID types.TableID
	// Schema carries the column names in ordinal order for result labeling.
	Schema []string
}

// Filter passes through rows for which the predicate evaluates to
// Bool(true).
type Filter struct {
	Input     Node
	Predicate *expr.Resolved
}

// Project narrows rows to the named ordinals in the requested order.
type Project struct {
	Input   Node
	Columns []ProjectColumn
}

// ProjectColumn pairs an output label with the input ordinal it reads.
type ProjectColumn struct {
	Name    string
	Ordinal types.ColumnID
}

// Insert materializes each row expression list and appends it to the table.
type Insert struct {
	TableID types.TableID
	Rows    [][]*expr.Resolved
}

// Update rewrites matching rows with the given assignments.
type Update struct {
	TableID     types.TableID
	Assignments []Assignment
	Predicate   *expr.Resolved // nil matches every row
}

// Assignment sets one column to the value of an expression evaluated
// against the pre-update row.
type Assignment struct {
	Ordinal types.ColumnID
	Value   *expr.Resolved
}

// Delete tombstones matching rows.
type Delete struct {
	TableID   types.TableID
	Predicate *expr.Resolved // nil matches every row
}

func (*SeqScan) planNode() {}
func (*Filter) planNode()  {}
func (*Project) planNode() {}
func (*Insert) planNode()  {}
func (*Update) planNode()  {}
func (*Delete) planNode()  {}
