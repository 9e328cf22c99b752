package cli

import (
	"strings"

	"github.com/wcygan/sql-database/pkg/types"
)

func colID(i int) types.ColumnID { return types.ColumnID(i) }

// renderTable formats a result set as an aligned text table. Every cell is
// left-aligned and padded to the widest value in its column:
//
//	id | name
//	---+------
//	1  | Alice
//	2  | Bob
func renderTable(columns []string, rows []types.Row) string {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	cells := make([][]string, len(rows))
	for ri, row := range rows {
		cells[ri] = make([]string, len(columns))
		for ci := range columns {
			text := "NULL"
			if ci < len(row.Values) {
				text = row.Values[ci].String()
			}
			cells[ri][ci] = text
			if len(text) > widths[ci] {
				widths[ci] = len(text)
			}
		}
	}

	var b strings.Builder
	for i, col := range columns {
		if i > 0 {
			b.WriteString(" | ")
		}
		pad(&b, col, widths[i])
	}
	b.WriteByte('\n')
	for i := range columns {
		if i > 0 {
			b.WriteString("-+-")
		}
		b.WriteString(strings.Repeat("-", widths[i]))
	}
	b.WriteByte('\n')
	for _, row := range cells {
		for i, cell := range row {
			if i > 0 {
				b.WriteString(" | ")
			}
			pad(&b, cell, widths[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func pad(b *strings.Builder, s string, width int) {
	b.WriteString(s)
	for i := len(s); i < width; i++ {
		b.WriteByte(' ')
	}
}
