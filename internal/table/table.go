// Package table holds the canonical in-memory shape produced by format
// parsers: a fixed column list plus rows of positional values.
//
// Values follow "nullable any" semantics: nil means SQL NULL. The kinds
// slice carries the declared type per column so the partition writer can
// build a columnar schema without sniffing row values.
package table

// Kind is the declared logical type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

// Table is a columns-plus-rows record batch.
//
// Rows are positional: len(row) == len(Columns) always holds for rows
// added through Append.
type Table struct {
	Columns []string
	Kinds   []Kind
	Rows    [][]any
}

// New constructs an empty table with the given column names and kinds.
// It panics if the two slices differ in length; that is a programming
// error in a parser, not an input error.
func New(columns []string, kinds []Kind) *Table {
	if len(columns) != len(kinds) {
		panic("table: columns and kinds length mismatch")
	}
	return &Table{Columns: columns, Kinds: kinds}
}

// Append adds one row. Short rows are padded with nil; long rows are a
// programming error and panic.
func (t *Table) Append(vals ...any) {
	if len(vals) > len(t.Columns) {
		panic("table: row longer than column list")
	}
	row := make([]any, len(t.Columns))
	copy(row, vals)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Col returns the index of the named column, or -1.
func (t *Table) Col(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
