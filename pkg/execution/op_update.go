package execution

import (
	"strings"

	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/update"
)

// Update applies SET clauses to the entities bound in its child's rows.
//
// Update is eager: it drains the child staging every change, commits the
// staged changes to storage, and only then emits the buffered rows. Values
// computed from one row therefore never observe writes caused by another.
type Update struct {
	OpBase
	ctxs      []update.EntityUpdateEvalCtx
	allowNull bool

	buf       *update.Buffer
	records   []*record.Record
	emitIdx   int
	committed bool
}

// NewUpdate creates an Update evaluating ctxs, resolved against the plan
// mapping, against every row. When allowNull is set a null value removes
// the property; otherwise it aborts the query.
func NewUpdate(plan *Plan, allowNull bool, ctxs ...update.EntityUpdateEvalCtx) *Update {
	return &Update{
		OpBase:    newOpBase(plan, OpUpdate),
		ctxs:      ctxs,
		allowNull: allowNull,
		buf:       update.NewBuffer(),
	}
}

func (op *Update) Consume() *record.Record {
	if !op.committed {
		op.committed = true
		if !op.stage() || !op.commit() {
			return nil
		}
	}
	if op.emitIdx >= len(op.records) {
		return nil
	}
	r := op.records[op.emitIdx]
	op.records[op.emitIdx] = nil
	op.emitIdx++
	return r
}

// stage drains the child, evaluating every clause against every row.
func (op *Update) stage() bool {
	if op.ChildCount() == 0 {
		return true
	}
	for r := op.ConsumeChild(0); r != nil; r = op.ConsumeChild(0) {
		for _, c := range op.ctxs {
			if err := update.EvalEntityUpdates(op.buf, r, c, op.allowNull); err != nil {
				r.Free()
				op.Abort(err)
				return false
			}
		}
		op.records = append(op.records, r)
	}
	return !op.Plan().Context().Aborted()
}

func (op *Update) commit() bool {
	q := op.Plan().Context()
	for _, kind := range []update.EntityKind{update.KindNode, update.KindEdge} {
		if err := update.CommitUpdates(q.Graph, q.Stats, op.buf, kind); err != nil {
			op.Abort(err)
			return false
		}
	}
	return true
}

func (op *Update) Reset() error {
	op.release()
	op.committed = false
	return nil
}

func (op *Update) Clone(plan *Plan) Operator {
	ctxs := make([]update.EntityUpdateEvalCtx, len(op.ctxs))
	for i, c := range op.ctxs {
		ctxs[i] = c.Clone()
	}
	return NewUpdate(plan, op.allowNull, ctxs...)
}

func (op *Update) Free() {
	op.release()
	for _, c := range op.ctxs {
		c.Free()
	}
	op.ctxs = nil
}

// release drops buffered rows and staged changes.
func (op *Update) release() {
	for _, r := range op.records[op.emitIdx:] {
		if r != nil {
			r.Free()
		}
	}
	op.records = nil
	op.emitIdx = 0
	op.buf.Clear(update.KindNode)
	op.buf.Clear(update.KindEdge)
}

func (op *Update) describe() string {
	parts := make([]string, 0, len(op.ctxs))
	for _, c := range op.ctxs {
		for _, p := range c.Properties {
			target := c.Alias
			if p.Key != "" {
				target += "." + p.Key
			}
			sep := " = "
			if c.Mode == update.Merge && p.Key == "" {
				sep = " += "
			}
			parts = append(parts, target+sep+p.Expr.String())
		}
	}
	return strings.Join(parts, ", ")
}
