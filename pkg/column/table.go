package column

import (
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/stratum/pkg/errors"
)

// Table is an ordered collection of equal-length columns
type Table struct {
	columns []*Column
	rows    int
}

// NewTable builds a table from columns of equal length. The table takes
// ownership of the columns.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{columns: columns}
	for i, c := range columns {
		if i == 0 {
			t.rows = c.Len()
			continue
		}
		if c.Len() != t.rows {
			return nil, errors.Newf(errors.ErrorTypeSizeMismatch, "column %d has %d rows, table has %d", i, c.Len(), t.rows)
		}
	}
	return t, nil
}

// NumRows returns the number of rows, 0 for a table without columns
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the number of columns
func (t *Table) NumColumns() int { return len(t.columns) }

// Column returns column i
func (t *Table) Column(i int) *Column { return t.columns[i] }

// Columns returns all columns
func (t *Table) Columns() []*Column { return t.columns }

// HasNulls reports whether any column holds a null.
func (t *Table) HasNulls() bool {
	for _, c := range t.columns {
		if c.NullCount() > 0 {
			return true
		}
	}
	return false
}

// Select returns a table sharing the given columns. The result retains
// them and must be released separately.
func (t *Table) Select(indices ...int) (*Table, error) {
	cols := make([]*Column, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(t.columns) {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column index %d out of range [0, %d)", i, len(t.columns))
		}
		t.columns[i].Retain()
		cols = append(cols, t.columns[i])
	}
	out := &Table{columns: cols, rows: t.rows}
	if len(cols) == 0 {
		out.rows = 0
	}
	return out, nil
}

// SizeInBytes returns the bytes held by every column.
func (t *Table) SizeInBytes() int {
	size := 0
	for _, c := range t.columns {
		size += c.SizeInBytes()
	}
	return size
}

// Copy returns a deep copy allocated from mem.
func (t *Table) Copy(mem memory.Allocator) *Table {
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.Copy(mem)
	}
	return &Table{columns: cols, rows: t.rows}
}

// Release releases every column
func (t *Table) Release() {
	if t == nil {
		return
	}
	for _, c := range t.columns {
		c.Release()
	}
}
