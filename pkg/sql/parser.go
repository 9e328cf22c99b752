// Package sql is the front end of the engine: it parses SQL text with the
// external sqlparser, binds names against the catalog, and emits the
// resolved physical plans the executor consumes. DDL statements come out as
// structured requests for the database facade rather than plans.
package sql

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/xwb1989/sqlparser"
)

// Parser errors keep their kind so the facade can classify them (§7 of the
// engine's error taxonomy).
var (
	ErrParse = errors.New("parse failed")
	ErrPlan  = errors.New("plan failed")
)

// parser wraps sqlparser with a small AST cache. Parsing is pure — the same
// text always yields the same tree and binding never mutates it — so cached
// statements can be replanned against the current catalog safely.
type parser struct {
	cache *ristretto.Cache[string, sqlparser.Statement]
}

func newParser() (*parser, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, sqlparser.Statement]{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("sql: create statement cache: %w", err)
	}
	return &parser{cache: cache}, nil
}

func (p *parser) parse(text string) (sqlparser.Statement, error) {
	if stmt, ok := p.cache.Get(text); ok {
		return stmt, nil
	}
	stmt, err := sqlparser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	p.cache.Set(text, stmt, int64(len(text)))
	return stmt, nil
}

func (p *parser) close() {
	p.cache.Close()
}
