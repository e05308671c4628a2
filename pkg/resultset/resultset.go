package resultset

import (
	"errors"
	"fmt"
	"io"

	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/value"
)

// ErrRowLimit is returned by Add once the configured row limit is reached.
var ErrRowLimit = errors.New("result set row limit reached")

// ResultSet holds the projected columns of every row a query returned.
//
// Rows own their values: Add clones the column slots out of the record so
// the record can be freed by its owner right away.
type ResultSet struct {
	columns []string
	offsets []int
	limit   int
	rows    [][]value.Value
	Stats   *Statistics
}

// New creates a result set reading the given record offsets. A limit of 0
// means unlimited rows.
func New(columns []string, offsets []int, limit int, stats *Statistics) *ResultSet {
	if stats == nil {
		stats = &Statistics{}
	}
	return &ResultSet{
		columns: append([]string(nil), columns...),
		offsets: append([]int(nil), offsets...),
		limit:   limit,
		Stats:   stats,
	}
}

// Columns returns the column names.
func (rs *ResultSet) Columns() []string { return rs.columns }

// Len returns the number of rows.
func (rs *ResultSet) Len() int { return len(rs.rows) }

// Row returns borrowed views of row i.
func (rs *ResultSet) Row(i int) []value.Value {
	row := make([]value.Value, len(rs.rows[i]))
	for j, v := range rs.rows[i] {
		row[j] = v.Share()
	}
	return row
}

// Add copies the column slots of r into a new row.
func (rs *ResultSet) Add(r *record.Record) error {
	if rs.limit > 0 && len(rs.rows) >= rs.limit {
		return fmt.Errorf("%w (%d rows)", ErrRowLimit, rs.limit)
	}
	row := make([]value.Value, len(rs.offsets))
	for i, idx := range rs.offsets {
		v := r.Get(idx)
		if v.Allocation() != value.Const {
			v = v.Clone()
		}
		row[i] = v
	}
	rs.rows = append(rs.rows, row)
	return nil
}

// Free releases every row.
func (rs *ResultSet) Free() {
	for _, row := range rs.rows {
		for _, v := range row {
			v.Free()
		}
	}
	rs.rows = nil
}

// Formatter renders a result set.
type Formatter interface {
	Format(w io.Writer, rs *ResultSet) error
}

// Write renders rs with f.
func (rs *ResultSet) Write(w io.Writer, f Formatter) error {
	return f.Format(w, rs)
}
