package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/wcygan/sql-database/pkg/catalog"
	"github.com/wcygan/sql-database/pkg/expr"
	"github.com/wcygan/sql-database/pkg/plan"
	"github.com/wcygan/sql-database/pkg/types"
)

// Statement is the planner's output: either a resolved physical plan or a
// structured DDL request for the facade.
type Statement interface{ isStatement() }

// Query wraps a row-returning plan (SELECT).
type Query struct{ Plan plan.Node }

// Mutation wraps a data-modifying plan (INSERT/UPDATE/DELETE).
type Mutation struct{ Plan plan.Node }

// CreateTable asks the facade to register a table.
type CreateTable struct {
	Name   string
	Schema *catalog.Schema
}

// DropTable asks the facade to remove a table.
type DropTable struct{ Name string }

func (Query) isStatement()       {}
func (Mutation) isStatement()    {}
func (CreateTable) isStatement() {}
func (DropTable) isStatement()   {}

// Planner turns SQL text into Statements against a catalog.
type Planner struct {
	catalog *catalog.Catalog
	parser  *parser
}

// NewPlanner builds a planner bound to the catalog.
func NewPlanner(cat *catalog.Catalog) (*Planner, error) {
	p, err := newParser()
	if err != nil {
		return nil, err
	}
	return &Planner{catalog: cat, parser: p}, nil
}

// Close releases the statement cache.
func (p *Planner) Close() {
	p.parser.close()
}

// Plan parses and binds one SQL statement. A trailing semicolon is
// accepted and ignored.
func (p *Planner) Plan(text string) (Statement, error) {
	ast, err := p.parser.parse(strings.TrimRight(strings.TrimSpace(text), ";"))
	if err != nil {
		return nil, err
	}
	switch stmt := ast.(type) {
	case *sqlparser.Select:
		return p.planSelect(stmt)
	case *sqlparser.Insert:
		return p.planInsert(stmt)
	case *sqlparser.Update:
		return p.planUpdate(stmt)
	case *sqlparser.Delete:
		return p.planDelete(stmt)
	case *sqlparser.DDL:
		return p.planDDL(stmt)
	default:
		return nil, fmt.Errorf("%w: unsupported statement %T", ErrPlan, ast)
	}
}

func (p *Planner) planSelect(stmt *sqlparser.Select) (Statement, error) {
	meta, err := p.singleTable(stmt.From)
	if err != nil {
		return nil, err
	}

	var root plan.Node = &plan.SeqScan{
		TableID: meta.ID,
		Schema:  meta.Schema.ColumnNames(),
	}

	if stmt.Where != nil {
		predicate, err := p.bindExpr(stmt.Where.Expr, meta.Schema)
		if err != nil {
			return nil, err
		}
		root = &plan.Filter{Input: root, Predicate: predicate}
	}

	columns, err := p.bindProjection(stmt.SelectExprs, meta.Schema)
	if err != nil {
		return nil, err
	}
	root = &plan.Project{Input: root, Columns: columns}

	return Query{Plan: root}, nil
}

func (p *Planner) bindProjection(exprs sqlparser.SelectExprs, schema *catalog.Schema) ([]plan.ProjectColumn, error) {
	var columns []plan.ProjectColumn
	for _, se := range exprs {
		switch item := se.(type) {
		case *sqlparser.StarExpr:
			for i, col := range schema.Columns {
				columns = append(columns, plan.ProjectColumn{Name: col.Name, Ordinal: types.ColumnID(i)})
			}
		case *sqlparser.AliasedExpr:
			col, ok := item.Expr.(*sqlparser.ColName)
			if !ok {
				return nil, fmt.Errorf("%w: only column references are selectable, got %s",
					ErrPlan, sqlparser.String(item.Expr))
			}
			name := col.Name.Lowered()
			ord, ok := schema.ColumnIndex(name)
			if !ok {
				return nil, fmt.Errorf("%w: unknown column %q", ErrPlan, name)
			}
			label := name
			if !item.As.IsEmpty() {
				label = item.As.Lowered()
			}
			columns = append(columns, plan.ProjectColumn{Name: label, Ordinal: ord})
		default:
			return nil, fmt.Errorf("%w: unsupported select expression %T", ErrPlan, se)
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: empty select list", ErrPlan)
	}
	return columns, nil
}

func (p *Planner) planInsert(stmt *sqlparser.Insert) (Statement, error) {
	meta, err := p.catalog.Table(strings.ToLower(stmt.Table.Name.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlan, err)
	}

	values, ok := stmt.Rows.(sqlparser.Values)
	if !ok {
		return nil, fmt.Errorf("%w: INSERT only supports VALUES lists", ErrPlan)
	}

	// An explicit column list maps values into schema order; unlisted
	// columns become NULL.
	var target []types.ColumnID
	if len(stmt.Columns) > 0 {
		seen := make(map[types.ColumnID]bool, len(stmt.Columns))
		for _, colName := range stmt.Columns {
			ord, ok := meta.Schema.ColumnIndex(colName.Lowered())
			if !ok {
				return nil, fmt.Errorf("%w: unknown column %q", ErrPlan, colName.Lowered())
			}
			if seen[ord] {
				return nil, fmt.Errorf("%w: column %q listed twice", ErrPlan, colName.Lowered())
			}
			seen[ord] = true
			target = append(target, ord)
		}
	}

	width := len(meta.Schema.Columns)
	rows := make([][]*expr.Resolved, 0, len(values))
	for i, tuple := range values {
		wantArity := width
		if target != nil {
			wantArity = len(target)
		}
		if len(tuple) != wantArity {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrPlan, i, len(tuple), wantArity)
		}
		row := make([]*expr.Resolved, width)
		for ord := range row {
			row[ord] = expr.Literal(types.Null())
		}
		for j, valExpr := range tuple {
			bound, err := p.bindExpr(valExpr, nil)
			if err != nil {
				return nil, err
			}
			ord := types.ColumnID(j)
			if target != nil {
				ord = target[j]
			}
			row[ord] = bound
		}
		rows = append(rows, row)
	}

	return Mutation{Plan: &plan.Insert{TableID: meta.ID, Rows: rows}}, nil
}

func (p *Planner) planUpdate(stmt *sqlparser.Update) (Statement, error) {
	meta, err := p.singleTable(stmt.TableExprs)
	if err != nil {
		return nil, err
	}

	assignments := make([]plan.Assignment, 0, len(stmt.Exprs))
	for _, ue := range stmt.Exprs {
		name := ue.Name.Name.Lowered()
		ord, ok := meta.Schema.ColumnIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q", ErrPlan, name)
		}
		value, err := p.bindExpr(ue.Expr, meta.Schema)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, plan.Assignment{Ordinal: ord, Value: value})
	}

	var predicate *expr.Resolved
	if stmt.Where != nil {
		if predicate, err = p.bindExpr(stmt.Where.Expr, meta.Schema); err != nil {
			return nil, err
		}
	}

	return Mutation{Plan: &plan.Update{TableID: meta.ID, Assignments: assignments, Predicate: predicate}}, nil
}

func (p *Planner) planDelete(stmt *sqlparser.Delete) (Statement, error) {
	meta, err := p.singleTable(stmt.TableExprs)
	if err != nil {
		return nil, err
	}

	var predicate *expr.Resolved
	if stmt.Where != nil {
		if predicate, err = p.bindExpr(stmt.Where.Expr, meta.Schema); err != nil {
			return nil, err
		}
	}

	return Mutation{Plan: &plan.Delete{TableID: meta.ID, Predicate: predicate}}, nil
}

func (p *Planner) planDDL(stmt *sqlparser.DDL) (Statement, error) {
	switch stmt.Action {
	case sqlparser.CreateStr:
		return p.planCreateTable(stmt)
	case sqlparser.DropStr:
		return DropTable{Name: strings.ToLower(stmt.Table.Name.String())}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported DDL action %q", ErrPlan, stmt.Action)
	}
}

// colKeyPrimary mirrors sqlparser's unexported colKeyPrimary so a
// column-level "PRIMARY KEY" option is honored alongside the table-level
// PRIMARY KEY (...) clause.
const colKeyPrimary = 1

func (p *Planner) planCreateTable(stmt *sqlparser.DDL) (Statement, error) {
	name := strings.ToLower(stmt.NewName.Name.String())
	if name == "" {
		name = strings.ToLower(stmt.Table.Name.String())
	}
	if stmt.TableSpec == nil {
		return nil, fmt.Errorf("%w: CREATE TABLE requires a column list", ErrPlan)
	}

	columns := make([]catalog.Column, 0, len(stmt.TableSpec.Columns))
	var primaryKey []types.ColumnID
	for i, col := range stmt.TableSpec.Columns {
		ty, err := bindColumnType(col.Type.Type)
		if err != nil {
			return nil, err
		}
		columns = append(columns, catalog.NewColumn(col.Name.Lowered(), ty))
		if int(col.Type.KeyOpt) == colKeyPrimary {
			primaryKey = append(primaryKey, types.ColumnID(i))
		}
	}

	for _, idxDef := range stmt.TableSpec.Indexes {
		if idxDef.Info == nil || !idxDef.Info.Primary {
			continue
		}
		if primaryKey != nil {
			return nil, fmt.Errorf("%w: multiple primary key declarations", ErrPlan)
		}
		for _, idxCol := range idxDef.Columns {
			colName := idxCol.Column.Lowered()
			found := false
			for ord, col := range columns {
				if col.Name == colName {
					primaryKey = append(primaryKey, types.ColumnID(ord))
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("%w: primary key names unknown column %q", ErrPlan, colName)
			}
		}
	}

	schema, err := catalog.NewSchema(columns, primaryKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlan, err)
	}
	return CreateTable{Name: name, Schema: schema}, nil
}

func bindColumnType(name string) (types.SqlType, error) {
	switch strings.ToLower(name) {
	case "int", "integer", "bigint":
		return types.TypeInt, nil
	case "text", "varchar", "char":
		return types.TypeText, nil
	case "bool", "boolean":
		return types.TypeBool, nil
	default:
		return types.TypeUnknown, fmt.Errorf("%w: unsupported column type %q", ErrPlan, name)
	}
}

// singleTable resolves a FROM/target clause that must name exactly one
// unaliased table.
func (p *Planner) singleTable(tables sqlparser.TableExprs) (*catalog.TableMeta, error) {
	if len(tables) != 1 {
		return nil, fmt.Errorf("%w: exactly one table expected", ErrPlan)
	}
	aliased, ok := tables[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil, fmt.Errorf("%w: joins are not supported", ErrPlan)
	}
	tableName, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return nil, fmt.Errorf("%w: subqueries are not supported", ErrPlan)
	}
	meta, err := p.catalog.Table(strings.ToLower(tableName.Name.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlan, err)
	}
	return meta, nil
}

// bindExpr converts a parsed expression into a resolved tree. A nil schema
// means no columns are in scope (INSERT value lists).
func (p *Planner) bindExpr(e sqlparser.Expr, schema *catalog.Schema) (*expr.Resolved, error) {
	switch node := e.(type) {
	case *sqlparser.AndExpr:
		return p.bindBinary(node.Left, expr.OpAnd, node.Right, schema)
	case *sqlparser.OrExpr:
		return p.bindBinary(node.Left, expr.OpOr, node.Right, schema)
	case *sqlparser.NotExpr:
		inner, err := p.bindExpr(node.Expr, schema)
		if err != nil {
			return nil, err
		}
		return expr.Not(inner), nil
	case *sqlparser.ParenExpr:
		return p.bindExpr(node.Expr, schema)
	case *sqlparser.ComparisonExpr:
		op, err := bindComparisonOp(node.Operator)
		if err != nil {
			return nil, err
		}
		return p.bindBinary(node.Left, op, node.Right, schema)
	case *sqlparser.ColName:
		if schema == nil {
			return nil, fmt.Errorf("%w: column reference %q not allowed here", ErrPlan, node.Name.Lowered())
		}
		ord, ok := schema.ColumnIndex(node.Name.Lowered())
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q", ErrPlan, node.Name.Lowered())
		}
		return expr.Column(ord), nil
	case *sqlparser.SQLVal:
		return bindLiteral(node)
	case sqlparser.BoolVal:
		return expr.Literal(types.NewBool(bool(node))), nil
	case *sqlparser.NullVal:
		return expr.Literal(types.Null()), nil
	case *sqlparser.UnaryExpr:
		// Negative integer literals parse as unary minus.
		if node.Operator == sqlparser.UMinusStr {
			if val, ok := node.Expr.(*sqlparser.SQLVal); ok && val.Type == sqlparser.IntVal {
				n, err := strconv.ParseInt("-"+string(val.Val), 10, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: invalid integer literal: %v", ErrPlan, err)
				}
				return expr.Literal(types.NewInt(n)), nil
			}
		}
		return nil, fmt.Errorf("%w: unsupported unary operator %q", ErrPlan, node.Operator)
	default:
		return nil, fmt.Errorf("%w: unsupported expression %s", ErrPlan, sqlparser.String(e))
	}
}

func (p *Planner) bindBinary(left sqlparser.Expr, op expr.BinaryOp, right sqlparser.Expr, schema *catalog.Schema) (*expr.Resolved, error) {
	l, err := p.bindExpr(left, schema)
	if err != nil {
		return nil, err
	}
	r, err := p.bindExpr(right, schema)
	if err != nil {
		return nil, err
	}
	return expr.Binary(l, op, r), nil
}

func bindComparisonOp(op string) (expr.BinaryOp, error) {
	switch op {
	case sqlparser.EqualStr:
		return expr.OpEq, nil
	case sqlparser.NotEqualStr:
		return expr.OpNe, nil
	case sqlparser.LessThanStr:
		return expr.OpLt, nil
	case sqlparser.LessEqualStr:
		return expr.OpLe, nil
	case sqlparser.GreaterThanStr:
		return expr.OpGt, nil
	case sqlparser.GreaterEqualStr:
		return expr.OpGe, nil
	default:
		return 0, fmt.Errorf("%w: unsupported comparison operator %q", ErrPlan, op)
	}
}

func bindLiteral(val *sqlparser.SQLVal) (*expr.Resolved, error) {
	switch val.Type {
	case sqlparser.IntVal:
		n, err := strconv.ParseInt(string(val.Val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer literal: %v", ErrPlan, err)
		}
		return expr.Literal(types.NewInt(n)), nil
	case sqlparser.StrVal:
		return expr.Literal(types.NewText(string(val.Val))), nil
	default:
		return nil, fmt.Errorf("%w: unsupported literal type", ErrPlan)
	}
}
