package executor

import (
	"fmt"

	"github.com/wcygan/sql-database/pkg/plan"
)

// Build turns a physical plan into an operator tree.
func Build(node plan.Node) (Executor, error) {
	switch n := node.(type) {
	case *plan.SeqScan:
		return NewSeqScan(n.TableID, n.Schema), nil
	case *plan.Filter:
		input, err := Build(n.Input)
		if err != nil {
			return nil, err
		}
		return NewFilter(input, n.Predicate), nil
	case *plan.Project:
		input, err := Build(n.Input)
		if err != nil {
			return nil, err
		}
		return NewProject(input, n.Columns), nil
	case *plan.Insert:
		return NewInsert(n.TableID, n.Rows), nil
	case *plan.Update:
		return NewUpdate(n.TableID, n.Assignments, n.Predicate), nil
	case *plan.Delete:
		return NewDelete(n.TableID, n.Predicate), nil
	default:
		return nil, fmt.Errorf("executor: unsupported plan node %T", node)
	}
}
