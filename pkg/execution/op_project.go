package execution

import (
	"fmt"
	"strings"

	"github.com/orneryd/nornicexec/pkg/expr"
	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/value"
)

// Project evaluates a list of expressions into a new record per input row.
// Slots of the input row that are not projected are dropped.
//
// Without a child, Project emits a single row evaluated against an empty
// record, then end of stream.
type Project struct {
	OpBase
	exprs   []expr.Aliased
	offsets []int

	singleResponse bool           // the childless row was emitted
	r              *record.Record // input row being projected
	projection     *record.Record // output row being built
}

// NewProject registers every alias as an output of the operator.
func NewProject(plan *Plan, exprs []expr.Aliased) *Project {
	op := &Project{OpBase: newOpBase(plan, OpProject), exprs: exprs}
	op.offsets = make([]int, len(exprs))
	for i, e := range exprs {
		op.offsets[i] = op.Modifies(e.Alias)
	}
	return op
}

func (op *Project) Consume() *record.Record {
	if op.ChildCount() > 0 {
		op.r = op.ConsumeChild(0)
		if op.r == nil {
			return nil
		}
	} else {
		if op.singleResponse {
			return nil
		}
		op.singleResponse = true
		op.r = op.CreateRecord()
	}

	op.projection = op.CreateRecord()
	for i, e := range op.exprs {
		v, err := e.Expr.Evaluate(op.r)
		if err != nil {
			op.Abort(fmt.Errorf("project %s: %w", e.Alias, err))
			op.release()
			return nil
		}
		// Values borrowed from the input row must outlive it.
		if !v.IsGraphEntity() {
			value.Persist(&v)
		}
		op.projection.Add(op.offsets[i], v)
		// The record keeps a reference; drop our handle.
		if v.IsGraphEntity() {
			v.Free()
		}
	}

	op.r.Free()
	op.r = nil
	projection := op.projection
	op.projection = nil
	return projection
}

func (op *Project) Reset() error {
	op.singleResponse = false
	return nil
}

func (op *Project) Clone(plan *Plan) Operator {
	exprs := make([]expr.Aliased, len(op.exprs))
	for i, e := range op.exprs {
		exprs[i] = e.Clone()
	}
	return NewProject(plan, exprs)
}

func (op *Project) Free() {
	op.release()
	for _, e := range op.exprs {
		e.Expr.Free()
	}
	op.exprs = nil
}

func (op *Project) release() {
	if op.r != nil {
		op.r.Free()
		op.r = nil
	}
	if op.projection != nil {
		op.projection.Free()
		op.projection = nil
	}
}

func (op *Project) describe() string {
	parts := make([]string, len(op.exprs))
	for i, e := range op.exprs {
		parts[i] = e.Expr.String() + " AS " + e.Alias
	}
	return strings.Join(parts, ", ")
}
