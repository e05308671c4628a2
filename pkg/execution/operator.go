// Package execution runs query plans as trees of pull-based operators.
//
// # Execution model
//
// The root of a Plan is pulled one row at a time. Each operator pulls from
// its children on demand and returns a *record.Record, or nil once the stream
// is exhausted. Ownership of a returned record moves to the caller, which
// must either forward it or Free it exactly once.
//
// Consume never returns an error. An operator that hits a fault calls
// QueryContext.Abort and returns nil; Plan.Execute stops pulling and
// reports the cause.
//
// # Lifecycle
//
//	plan := execution.NewPlan(qctx)
//	seek := execution.NewNodeByIDSeek(plan, "n", execution.UnsignedRange{Max: 10, IncludeMax: true})
//	proj := execution.NewProject(plan, []expr.Aliased{...})
//	proj.AddChild(seek)
//	plan.SetRoot(proj)
//	err := plan.Execute(ctx) // Init, then pull until nil
//	plan.Free()
//
// # Parallelism
//
// One operator tree is never shared between goroutines. RunParallel clones
// the plan once per worker; clones share only the frozen record mapping and
// the storage engine.
package execution

import (
	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/storage"
)

// OpType tags an operator kind.
type OpType string

const (
	OpProject      OpType = "Project"
	OpNodeByIDSeek OpType = "NodeByIdSeek"
	OpUpdate       OpType = "Update"
	OpFilter       OpType = "Filter"
	OpSkip         OpType = "Skip"
	OpLimit        OpType = "Limit"
	OpSort         OpType = "Sort"
	OpResults      OpType = "Results"
)

// Operator is one node of an execution tree.
type Operator interface {
	Type() OpType
	Name() string
	Plan() *Plan
	Children() []Operator
	ChildCount() int
	AddChild(child Operator)
	// Outputs are the record offsets this operator writes.
	Outputs() []int

	// Init runs once per execution, after the tree is assembled and after
	// the operator's children were initialized.
	Init() error
	// Consume returns the next row, or nil at end of stream. The stream
	// stays exhausted until Reset.
	Consume() *record.Record
	// Reset rewinds local cursor state. Children are reset by the plan.
	Reset() error
	// Clone returns an operator bound to plan with the same configuration
	// and no children. Plan.Clone wires the cloned children.
	Clone(plan *Plan) Operator
	// Free releases what the operator itself holds. Children are freed by
	// the plan.
	Free()
}

// describer is implemented by operators that add details to EXPLAIN output.
type describer interface {
	describe() string
}

// OpBase carries the bookkeeping shared by every operator. Concrete
// operators embed it and implement Consume and Clone.
type OpBase struct {
	typ      OpType
	name     string
	plan     *Plan
	children []Operator
	outputs  []int
}

func newOpBase(plan *Plan, typ OpType) OpBase {
	return OpBase{typ: typ, name: string(typ), plan: plan}
}

func (o *OpBase) Type() OpType         { return o.typ }
func (o *OpBase) Name() string         { return o.name }
func (o *OpBase) Plan() *Plan          { return o.plan }
func (o *OpBase) Children() []Operator { return o.children }
func (o *OpBase) ChildCount() int      { return len(o.children) }
func (o *OpBase) Outputs() []int       { return o.outputs }

func (o *OpBase) AddChild(child Operator) {
	o.children = append(o.children, child)
}

// Modifies registers alias as an output of the operator and returns its
// record offset.
func (o *OpBase) Modifies(alias string) int {
	idx := o.plan.Modifies(alias)
	o.outputs = append(o.outputs, idx)
	return idx
}

// CreateRecord allocates an empty record sized to the plan mapping.
func (o *OpBase) CreateRecord() *record.Record {
	return o.plan.NewRecord()
}

// ConsumeChild pulls the next row from child i.
func (o *OpBase) ConsumeChild(i int) *record.Record {
	return o.children[i].Consume()
}

// Abort stops the execution with err.
func (o *OpBase) Abort(err error) {
	o.plan.qctx.Abort(err)
}

// Graph is the storage engine of the running query.
func (o *OpBase) Graph() storage.Engine {
	return o.plan.qctx.Graph
}

func (o *OpBase) Init() error  { return nil }
func (o *OpBase) Reset() error { return nil }
func (o *OpBase) Free()        {}
