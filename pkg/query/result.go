package query

import (
	"fmt"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
)

// Record is one row keyed by column name.
type Record map[string]any

// Table is the normalized result handed to callers: unique column names in
// a fixed order plus rows of exactly that width.
type Table struct {
	Columns []string
	Types   []string
	Rows    [][]any
}

// Records zips each row with the column names.
func (t *Table) Records() []Record {
	records := make([]Record, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(Record, len(t.Columns))
		for j, name := range t.Columns {
			rec[name] = row[j]
		}
		records[i] = rec
	}
	return records
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Normalize converts an engine response into a Table. Column order follows
// the descriptors. Duplicate names get a numeric suffix so records stay
// addressable; short rows are padded with nil and long rows truncated.
func Normalize(res *connection.Result) *Table {
	if res == nil {
		return &Table{Columns: []string{}, Types: []string{}, Rows: [][]any{}}
	}

	table := &Table{
		Columns: uniqueNames(res.ColumnNames()),
		Types:   make([]string, len(res.Columns)),
		Rows:    make([][]any, len(res.Rows)),
	}
	for i, c := range res.Columns {
		table.Types[i] = c.Type
	}
	width := len(table.Columns)
	for i, row := range res.Rows {
		normalized := make([]any, width)
		copy(normalized, row)
		table.Rows[i] = normalized
	}
	return table
}

func uniqueNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		candidate := name
		for n := 2; seen[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}
