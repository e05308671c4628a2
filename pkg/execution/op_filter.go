package execution

import (
	"fmt"

	"github.com/orneryd/nornicexec/pkg/expr"
	"github.com/orneryd/nornicexec/pkg/record"
)

// Filter forwards the child rows for which the predicate is true. Null
// counts as false; any other non boolean result aborts the query.
type Filter struct {
	OpBase
	predicate expr.Expression
}

func NewFilter(plan *Plan, predicate expr.Expression) *Filter {
	return &Filter{OpBase: newOpBase(plan, OpFilter), predicate: predicate}
}

func (op *Filter) Consume() *record.Record {
	for {
		r := op.ConsumeChild(0)
		if r == nil {
			return nil
		}
		v, err := op.predicate.Evaluate(r)
		if err != nil {
			r.Free()
			op.Abort(fmt.Errorf("filter: %w", err))
			return nil
		}
		pass, ok := v.ToBool()
		if !ok && !v.IsNull() {
			kind := v.Kind()
			v.Free()
			r.Free()
			op.Abort(fmt.Errorf("filter: predicate returned %s: %w", kind, expr.ErrTypeMismatch))
			return nil
		}
		v.Free()
		if pass {
			return r
		}
		r.Free()
	}
}

func (op *Filter) Clone(plan *Plan) Operator {
	return NewFilter(plan, op.predicate.Clone())
}

func (op *Filter) Free() {
	if op.predicate != nil {
		op.predicate.Free()
		op.predicate = nil
	}
}

func (op *Filter) describe() string { return op.predicate.String() }
