package database

import (
	"errors"

	"github.com/wcygan/sql-database/pkg/catalog"
	"github.com/wcygan/sql-database/pkg/executor"
	"github.com/wcygan/sql-database/pkg/expr"
	"github.com/wcygan/sql-database/pkg/sql"
	"github.com/wcygan/sql-database/pkg/storage"
	"github.com/wcygan/sql-database/pkg/wal"
)

// ErrorKind classifies a statement failure for callers that report errors
// (the shell, an embedding CLI). Errors themselves flow up unchanged; the
// kind is derived, not wrapped in.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindParser
	KindPlanner
	KindExecutor
	KindCatalog
	KindStorage
	KindWal
	KindConstraint
	KindIo
)

// String names the kind the way the shell prints it.
func (k ErrorKind) String() string {
	switch k {
	case KindParser:
		return "parse"
	case KindPlanner:
		return "plan"
	case KindExecutor:
		return "exec"
	case KindCatalog:
		return "catalog"
	case KindStorage:
		return "storage"
	case KindWal:
		return "wal"
	case KindConstraint:
		return "constraint violation"
	case KindIo:
		return "io"
	default:
		return "error"
	}
}

// Classify maps an error from Execute onto the taxonomy.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, sql.ErrParse):
		return KindParser
	case errors.Is(err, sql.ErrPlan):
		return KindPlanner
	case errors.Is(err, executor.ErrDuplicateKey),
		errors.Is(err, executor.ErrPrimaryKeyImmutable):
		return KindConstraint
	case errors.Is(err, catalog.ErrUnknownTable),
		errors.Is(err, catalog.ErrDuplicateName),
		errors.Is(err, catalog.ErrReservedName),
		errors.Is(err, catalog.ErrInvalidSchema):
		return KindCatalog
	case errors.Is(err, wal.ErrCorruptRecord),
		errors.Is(err, wal.ErrClosed):
		return KindWal
	case errors.Is(err, expr.ErrEval):
		return KindExecutor
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrSizeMismatch),
		errors.Is(err, storage.ErrNoSpace),
		errors.Is(err, storage.ErrInvalidSlot),
		errors.Is(err, storage.ErrTupleDeleted):
		return KindStorage
	default:
		return KindIo
	}
}
