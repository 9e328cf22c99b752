// Package cli provides the interactive shell over a database instance.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/wcygan/sql-database/internal/logger"
	"github.com/wcygan/sql-database/pkg/database"
)

// REPL is the read-eval-print loop.
type REPL struct {
	db  *database.Database
	log *logger.Logger
	rl  *readline.Instance
	out io.Writer
}

// NewREPL wires a shell to an open database.
func NewREPL(db *database.Database, log *logger.Logger) *REPL {
	return &REPL{db: db, log: log, out: os.Stdout}
}

// Run starts the loop and blocks until the user exits.
func (r *REPL) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "toydb> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    newCompleter(),
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if quit := r.metaCommand(line); quit {
				return nil
			}
			continue
		}
		r.execute(line)
	}
}

func (r *REPL) execute(stmt string) {
	result, err := r.db.Execute(stmt)
	if err != nil {
		r.log.Debugw("statement failed", "stmt", stmt, "err", err)
		fmt.Fprintf(r.out, "%s: %v\n", database.Classify(err), err)
		return
	}
	switch result.Kind {
	case database.KindRows:
		fmt.Fprint(r.out, renderTable(result.Columns, result.Rows))
		fmt.Fprintf(r.out, "(%d rows)\n", len(result.Rows))
	case database.KindCount:
		fmt.Fprintf(r.out, "OK, %d rows affected\n", result.Affected)
	case database.KindEmpty:
		fmt.Fprintln(r.out, "OK")
	}
}

// metaCommand handles dot commands; returns true when the shell should
// exit.
func (r *REPL) metaCommand(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".quit", ".exit":
		return true
	case ".help":
		fmt.Fprintln(r.out, "Statements: CREATE TABLE, DROP TABLE, INSERT, SELECT, UPDATE, DELETE")
		fmt.Fprintln(r.out, "Commands:   .tables  .schema <table>  .help  .quit")
	case ".tables":
		for _, meta := range r.db.Catalog().Tables() {
			fmt.Fprintln(r.out, meta.Name)
		}
	case ".schema":
		if len(fields) < 2 {
			fmt.Fprintln(r.out, "usage: .schema <table>")
			return false
		}
		meta, err := r.db.Catalog().Table(fields[1])
		if err != nil {
			fmt.Fprintf(r.out, "%v\n", err)
			return false
		}
		for i, col := range meta.Schema.Columns {
			pk := ""
			if meta.Schema.IsPrimaryKeyColumn(colID(i)) {
				pk = " PRIMARY KEY"
			}
			fmt.Fprintf(r.out, "%s %s%s\n", col.Name, col.Type, pk)
		}
	default:
		fmt.Fprintf(r.out, "unknown command %q (try .help)\n", fields[0])
	}
	return false
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "toydb shell — enter SQL statements, or .help")
}

func newCompleter() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("SELECT"),
		readline.PcItem("INSERT"),
		readline.PcItem("UPDATE"),
		readline.PcItem("DELETE"),
		readline.PcItem("CREATE"),
		readline.PcItem("DROP"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema"),
		readline.PcItem(".help"),
		readline.PcItem(".quit"),
	)
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".toydb_history")
}
