package execution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/nornicexec/pkg/expr"
	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/value"
)

// SortKey is one ORDER BY item.
type SortKey struct {
	Expr       expr.Expression
	Descending bool
}

type sortedRow struct {
	r    *record.Record
	keys []value.Value
}

// Sort drains its child, orders the rows by the sort keys and emits them.
// Rows with equal keys keep their input order.
type Sort struct {
	OpBase
	keys []SortKey

	rows    []sortedRow
	emitIdx int
	sorted  bool
}

func NewSort(plan *Plan, keys ...SortKey) *Sort {
	return &Sort{OpBase: newOpBase(plan, OpSort), keys: keys}
}

func (op *Sort) Consume() *record.Record {
	if !op.sorted {
		op.sorted = true
		if !op.collect() {
			return nil
		}
		sort.SliceStable(op.rows, func(i, j int) bool {
			return op.less(op.rows[i].keys, op.rows[j].keys)
		})
	}
	if op.emitIdx >= len(op.rows) {
		return nil
	}
	row := op.rows[op.emitIdx]
	op.rows[op.emitIdx] = sortedRow{}
	op.emitIdx++
	freeValues(row.keys)
	return row.r
}

func (op *Sort) collect() bool {
	for r := op.ConsumeChild(0); r != nil; r = op.ConsumeChild(0) {
		keys := make([]value.Value, len(op.keys))
		for i, k := range op.keys {
			v, err := k.Expr.Evaluate(r)
			if err != nil {
				freeValues(keys[:i])
				r.Free()
				op.Abort(fmt.Errorf("sort: %w", err))
				return false
			}
			value.Persist(&v)
			keys[i] = v
		}
		op.rows = append(op.rows, sortedRow{r: r, keys: keys})
	}
	return !op.Plan().Context().Aborted()
}

func (op *Sort) less(a, b []value.Value) bool {
	for i, k := range op.keys {
		c := value.Compare(a[i], b[i])
		if c == 0 {
			continue
		}
		if k.Descending {
			return c > 0
		}
		return c < 0
	}
	return false
}

func (op *Sort) Reset() error {
	op.release()
	op.sorted = false
	return nil
}

func (op *Sort) Clone(plan *Plan) Operator {
	keys := make([]SortKey, len(op.keys))
	for i, k := range op.keys {
		keys[i] = SortKey{Expr: k.Expr.Clone(), Descending: k.Descending}
	}
	return NewSort(plan, keys...)
}

func (op *Sort) Free() {
	op.release()
	for _, k := range op.keys {
		k.Expr.Free()
	}
	op.keys = nil
}

func (op *Sort) release() {
	for _, row := range op.rows[op.emitIdx:] {
		if row.r != nil {
			row.r.Free()
		}
		freeValues(row.keys)
	}
	op.rows = nil
	op.emitIdx = 0
}

func (op *Sort) describe() string {
	parts := make([]string, len(op.keys))
	for i, k := range op.keys {
		parts[i] = k.Expr.String()
		if k.Descending {
			parts[i] += " DESC"
		}
	}
	return strings.Join(parts, ", ")
}

func freeValues(vals []value.Value) {
	for _, v := range vals {
		v.Free()
	}
}
