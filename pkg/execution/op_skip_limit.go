package execution

import (
	"strconv"

	"github.com/orneryd/nornicexec/pkg/record"
)

// Skip drops the first n child rows.
type Skip struct {
	OpBase
	n       uint64
	skipped uint64
}

func NewSkip(plan *Plan, n uint64) *Skip {
	return &Skip{OpBase: newOpBase(plan, OpSkip), n: n}
}

func (op *Skip) Consume() *record.Record {
	for op.skipped < op.n {
		r := op.ConsumeChild(0)
		if r == nil {
			return nil
		}
		r.Free()
		op.skipped++
	}
	return op.ConsumeChild(0)
}

func (op *Skip) Reset() error {
	op.skipped = 0
	return nil
}

func (op *Skip) Clone(plan *Plan) Operator { return NewSkip(plan, op.n) }

func (op *Skip) describe() string { return strconv.FormatUint(op.n, 10) }

// Limit stops after n child rows without pulling further.
type Limit struct {
	OpBase
	n        uint64
	consumed uint64
}

func NewLimit(plan *Plan, n uint64) *Limit {
	return &Limit{OpBase: newOpBase(plan, OpLimit), n: n}
}

func (op *Limit) Consume() *record.Record {
	if op.consumed >= op.n {
		return nil
	}
	r := op.ConsumeChild(0)
	if r != nil {
		op.consumed++
	}
	return r
}

func (op *Limit) Reset() error {
	op.consumed = 0
	return nil
}

func (op *Limit) Clone(plan *Plan) Operator { return NewLimit(plan, op.n) }

func (op *Limit) describe() string { return strconv.FormatUint(op.n, 10) }
