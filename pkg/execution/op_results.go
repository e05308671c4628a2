package execution

import (
	"strings"

	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/resultset"
)

// Results is the root sink of a query returning rows. Every row it pulls is
// copied into the QueryContext's result set, then handed up to the driver.
type Results struct {
	OpBase
	columns []string
	offsets []int
}

// NewResults maps each column to the record slot of the same name.
func NewResults(plan *Plan, columns ...string) *Results {
	op := &Results{OpBase: newOpBase(plan, OpResults), columns: columns}
	op.offsets = make([]int, len(columns))
	for i, c := range columns {
		op.offsets[i] = plan.Modifies(c)
	}
	return op
}

// Init creates the result set unless the caller supplied one.
func (op *Results) Init() error {
	q := op.Plan().Context()
	if q.ResultSet == nil {
		q.ResultSet = resultset.New(op.columns, op.offsets, q.Options.ResultSetLimit, q.Stats)
	}
	return nil
}

func (op *Results) Consume() *record.Record {
	r := op.ConsumeChild(0)
	if r == nil {
		return nil
	}
	if err := op.Plan().Context().ResultSet.Add(r); err != nil {
		r.Free()
		op.Abort(err)
		return nil
	}
	return r
}

func (op *Results) Clone(plan *Plan) Operator {
	return NewResults(plan, op.columns...)
}

func (op *Results) describe() string { return strings.Join(op.columns, ", ") }
