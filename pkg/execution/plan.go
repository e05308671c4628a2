package execution

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/orneryd/nornicexec/pkg/record"
)

// Plan owns an operator tree, the record mapping shared by every row of the
// query, and the QueryContext of the current execution.
type Plan struct {
	mapping *record.Mapping
	qctx    *QueryContext
	root    Operator

	initialized bool
	freed       bool
}

// NewPlan creates an empty plan executing under qctx.
func NewPlan(qctx *QueryContext) *Plan {
	return &Plan{mapping: record.NewMapping(), qctx: qctx}
}

func (p *Plan) Mapping() *record.Mapping { return p.mapping }
func (p *Plan) Context() *QueryContext   { return p.qctx }
func (p *Plan) Root() Operator           { return p.root }

// SetRoot installs the top operator of the tree.
func (p *Plan) SetRoot(op Operator) { p.root = op }

// Modifies resolves alias to a record offset, registering it if needed.
func (p *Plan) Modifies(alias string) int {
	return p.mapping.Register(alias)
}

// NewRecord allocates an empty record sized to the mapping.
func (p *Plan) NewRecord() *record.Record {
	return record.New(p.mapping)
}

// Init freezes the mapping and initializes every operator, children before
// their parents. It runs at most once per plan.
func (p *Plan) Init() error {
	p.checkLive()
	if p.initialized {
		return nil
	}
	if p.root == nil {
		return fmt.Errorf("plan has no root operator")
	}
	p.mapping.Freeze()
	if err := initTree(p.root); err != nil {
		return err
	}
	p.initialized = true
	return nil
}

func initTree(op Operator) error {
	for _, child := range op.Children() {
		if err := initTree(child); err != nil {
			return err
		}
	}
	if err := op.Init(); err != nil {
		return fmt.Errorf("init %s: %w", op.Name(), err)
	}
	return nil
}

// Execute pulls the root until end of stream, freeing every row it gets.
// Rows reach the caller through a Results operator at the root.
//
// Execute stops early when ctx is done or when an operator aborts the
// query, and returns the abort cause.
func (p *Plan) Execute(ctx context.Context) error {
	p.checkLive()
	q := p.qctx
	if err := p.Init(); err != nil {
		q.Abort(err)
		return err
	}

	q.Info.StartExecution()
	if q.Options.QueryLog {
		log.Printf("[exec] query %s started: %s", q.ID, q.Query)
	}

	start := time.Now()
	rows := 0
	for {
		if err := ctx.Err(); err != nil {
			q.Abort(fmt.Errorf("%w: %w", ErrQueryAborted, err))
			break
		}
		r := p.root.Consume()
		if r == nil {
			break
		}
		rows++
		r.Free()
		if q.Aborted() {
			break
		}
	}
	elapsed := time.Since(start)
	q.Stats.ExecutionTime += elapsed
	q.Info.StartReporting()
	q.logExecution(rows, elapsed)
	return q.Err()
}

// Reset rewinds every operator so the plan can be executed again. Any abort
// cause left on the query context by the previous run is cleared.
func (p *Plan) Reset() error {
	p.checkLive()
	p.qctx.clearAbort()
	if p.root == nil {
		return nil
	}
	return resetTree(p.root)
}

func resetTree(op Operator) error {
	if err := op.Reset(); err != nil {
		return fmt.Errorf("reset %s: %w", op.Name(), err)
	}
	for _, child := range op.Children() {
		if err := resetTree(child); err != nil {
			return err
		}
	}
	return nil
}

// Clone builds an independent copy of the tree executing under qctx. The
// clone shares the mapping, which is frozen here so clones may read it
// concurrently.
func (p *Plan) Clone(qctx *QueryContext) *Plan {
	p.checkLive()
	p.mapping.Freeze()
	clone := &Plan{mapping: p.mapping, qctx: qctx}
	if p.root != nil {
		clone.root = cloneTree(clone, p.root)
	}
	return clone
}

func cloneTree(plan *Plan, op Operator) Operator {
	c := op.Clone(plan)
	for _, child := range op.Children() {
		c.AddChild(cloneTree(plan, child))
	}
	return c
}

// Free tears the tree down top-down. Using the plan afterwards panics.
func (p *Plan) Free() {
	if p.freed {
		return
	}
	if p.root != nil {
		freeTree(p.root)
	}
	p.freed = true
}

func freeTree(op Operator) {
	op.Free()
	for _, child := range op.Children() {
		freeTree(child)
	}
}

// Describe renders the operator tree, one operator per line, children
// indented under their parent.
func (p *Plan) Describe() string {
	if p.root == nil {
		return ""
	}
	var sb strings.Builder
	describeTree(&sb, p.root, 0)
	return sb.String()
}

func describeTree(sb *strings.Builder, op Operator, depth int) {
	sb.WriteString(strings.Repeat("    ", depth))
	sb.WriteString(op.Name())
	if d, ok := op.(describer); ok {
		if details := d.describe(); details != "" {
			sb.WriteString(" | ")
			sb.WriteString(details)
		}
	}
	sb.WriteByte('\n')
	for _, child := range op.Children() {
		describeTree(sb, child, depth+1)
	}
}

func (p *Plan) checkLive() {
	if p.freed {
		panic("execution: use of freed plan")
	}
}
