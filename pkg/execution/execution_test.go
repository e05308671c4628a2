package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicexec/pkg/expr"
	"github.com/orneryd/nornicexec/pkg/queryinfo"
	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/resultset"
	"github.com/orneryd/nornicexec/pkg/storage"
	"github.com/orneryd/nornicexec/pkg/update"
	"github.com/orneryd/nornicexec/pkg/value"
)

// newGraph creates one node per age, then deletes the given ids.
func newGraph(t *testing.T, ages []int64, deleted ...storage.NodeID) *storage.MemoryEngine {
	t.Helper()
	g := storage.NewMemoryEngine()
	for _, age := range ages {
		_, err := g.CreateNode(&storage.Node{Labels: []string{"Person"}, Properties: map[string]any{"age": age}})
		require.NoError(t, err)
	}
	for _, id := range deleted {
		require.NoError(t, g.DeleteNode(id))
	}
	return g
}

func newQuery(g storage.Engine) *QueryContext {
	return NewQueryContext(g, "test", Options{})
}

// scanPlan builds Results(n) <- Project(n) <- [extra...] <- NodeByIdSeek(n).
func scanPlan(q *QueryContext, rng UnsignedRange, extra ...func(*Plan) Operator) *Plan {
	plan := NewPlan(q)
	var top Operator = NewNodeByIDSeek(plan, "n", rng)
	for _, mk := range extra {
		op := mk(plan)
		op.AddChild(top)
		top = op
	}
	proj := NewProject(plan, []expr.Aliased{{Expr: expr.NewVariable(plan.Mapping(), "n"), Alias: "n"}})
	proj.AddChild(top)
	res := NewResults(plan, "n")
	res.AddChild(proj)
	plan.SetRoot(res)
	return plan
}

func resultIDs(t *testing.T, rs *resultset.ResultSet) []storage.NodeID {
	t.Helper()
	require.NotNil(t, rs)
	ids := make([]storage.NodeID, rs.Len())
	for i := range ids {
		row := rs.Row(i)
		require.Equal(t, value.KindNode, row[0].Kind())
		ids[i] = row[0].Node().ID
	}
	return ids
}

// drain pulls op until end of stream and returns the node ids bound at idx.
func drain(op Operator, idx int) []storage.NodeID {
	var ids []storage.NodeID
	for r := op.Consume(); r != nil; r = op.Consume() {
		ids = append(ids, r.GetNode(idx).ID)
		r.Free()
	}
	return ids
}

// scriptedChild emits rows numbered from 1, calling before(i) ahead of row i.
type scriptedChild struct {
	OpBase
	idx     int
	rows    int
	emitted int
	before  func(i int)
}

func newScriptedChild(plan *Plan, rows int, before func(int)) *scriptedChild {
	op := &scriptedChild{OpBase: newOpBase(plan, OpType("Scripted")), rows: rows, before: before}
	op.idx = op.Modifies("row")
	return op
}

func (op *scriptedChild) Consume() *record.Record {
	if op.emitted >= op.rows {
		return nil
	}
	if op.before != nil {
		op.before(op.emitted)
	}
	op.emitted++
	r := op.CreateRecord()
	r.AddScalar(op.idx, value.Int(int64(op.emitted)))
	return r
}

func (op *scriptedChild) Reset() error {
	op.emitted = 0
	return nil
}

func (op *scriptedChild) Clone(plan *Plan) Operator {
	return newScriptedChild(plan, op.rows, op.before)
}

func TestProject_NoChildEmitsSingleRow(t *testing.T) {
	plan := NewPlan(newQuery(storage.NewMemoryEngine()))
	proj := NewProject(plan, []expr.Aliased{{Expr: expr.NewConstant(value.String("hello")), Alias: "greeting"}})
	plan.SetRoot(proj)
	require.NoError(t, plan.Init())

	r := proj.Consume()
	require.NotNil(t, r)
	got, ok := r.GetByName("greeting")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Str())
	r.Free()

	for i := 0; i < 5; i++ {
		assert.Nil(t, proj.Consume(), "call %d after the single row", i)
	}

	require.NoError(t, plan.Reset())
	r = proj.Consume()
	require.NotNil(t, r, "reset re-arms the single row")
	r.Free()
	assert.Nil(t, proj.Consume())
	plan.Free()
}

func TestProject_ValuesOutliveInputRow(t *testing.T) {
	g := newGraph(t, []int64{40})
	q := newQuery(g)
	plan := NewPlan(q)
	m := plan.Mapping()
	seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 0, IncludeMin: true, IncludeMax: true})
	age := expr.NewProperty(expr.NewVariable(m, "n"), "age")
	labels, err := expr.NewFunction("labels", expr.NewVariable(m, "n"))
	require.NoError(t, err)
	proj := NewProject(plan, []expr.Aliased{
		{Expr: age, Alias: "age"},
		{Expr: labels, Alias: "labels"},
		{Expr: expr.NewVariable(m, "n"), Alias: "person"},
	})
	proj.AddChild(seek)
	res := NewResults(plan, "age", "labels", "person")
	res.AddChild(proj)
	plan.SetRoot(res)

	require.NoError(t, plan.Execute(context.Background()))
	plan.Free()

	require.Equal(t, 1, q.ResultSet.Len())
	row := q.ResultSet.Row(0)
	assert.Equal(t, int64(40), row[0].IntVal())
	assert.Equal(t, `["Person"]`, row[1].String())
	assert.Equal(t, storage.NodeID(0), row[2].Node().ID)
}

func TestProject_EvaluationErrorAborts(t *testing.T) {
	q := newQuery(newGraph(t, []int64{1, 2}))
	plan := NewPlan(q)
	seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 1, IncludeMin: true, IncludeMax: true})
	proj := NewProject(plan, []expr.Aliased{{
		Expr:  expr.NewBinary(expr.OpDiv, expr.NewConstant(value.Int(1)), expr.NewConstant(value.Int(0))),
		Alias: "bad",
	}})
	proj.AddChild(seek)
	res := NewResults(plan, "bad")
	res.AddChild(proj)
	plan.SetRoot(res)

	err := plan.Execute(context.Background())
	assert.ErrorIs(t, err, expr.ErrDivisionByZero)
	assert.Contains(t, err.Error(), "project bad")
	assert.Equal(t, 0, q.ResultSet.Len())
	plan.Free()
}

func TestNodeByIDSeek_SkipsHoles(t *testing.T) {
	g := newGraph(t, []int64{0, 1, 2, 3, 4}, 1, 3)
	plan := NewPlan(newQuery(g))
	seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Min: 0, Max: 5, IncludeMin: true, IncludeMax: true})
	plan.SetRoot(seek)
	require.NoError(t, plan.Init())

	assert.Equal(t, []storage.NodeID{0, 2, 4}, drain(seek, 0))
	assert.Nil(t, seek.Consume(), "end of stream is permanent")
	plan.Free()
}

func TestNodeByIDSeek_Bounds(t *testing.T) {
	g := newGraph(t, []int64{0, 1, 2, 3, 4})
	tests := []struct {
		name string
		rng  UnsignedRange
		want []storage.NodeID
	}{
		{"inclusive", UnsignedRange{Min: 1, Max: 3, IncludeMin: true, IncludeMax: true}, []storage.NodeID{1, 2, 3}},
		{"exclusive", UnsignedRange{Min: 1, Max: 3}, []storage.NodeID{2}},
		{"clamped to storage", UnsignedRange{Min: 3, Max: 1000, IncludeMin: true, IncludeMax: true}, []storage.NodeID{3, 4}},
		{"exclusive zero max", UnsignedRange{Min: 0, Max: 0, IncludeMin: true}, nil},
		{"min past storage", UnsignedRange{Min: 10, Max: 20, IncludeMin: true, IncludeMax: true}, nil},
		{"inverted", UnsignedRange{Min: 3, Max: 2, IncludeMin: true, IncludeMax: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := NewPlan(newQuery(g))
			seek := NewNodeByIDSeek(plan, "n", tt.rng)
			plan.SetRoot(seek)
			require.NoError(t, plan.Init())
			assert.Equal(t, tt.want, drain(seek, 0))
			plan.Free()
		})
	}
}

func TestNodeByIDSeek_EmptyGraph(t *testing.T) {
	plan := NewPlan(newQuery(storage.NewMemoryEngine()))
	seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 10, IncludeMax: true})
	plan.SetRoot(seek)
	require.NoError(t, plan.Init())
	assert.Nil(t, seek.Consume())
}

func TestNodeByIDSeek_CloneUsesConstructionBounds(t *testing.T) {
	g := newGraph(t, []int64{0, 1, 2, 3, 4}, 1, 3)
	plan := NewPlan(newQuery(g))
	seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 5, IncludeMin: true, IncludeMax: true})
	plan.SetRoot(seek)
	require.NoError(t, plan.Init())

	first := seek.Consume()
	require.NotNil(t, first)
	assert.Equal(t, storage.NodeID(0), first.GetNode(0).ID)
	first.Free()

	clone := plan.Clone(newQuery(g))
	require.NoError(t, clone.Init())
	assert.Equal(t, []storage.NodeID{0, 2, 4}, drain(clone.Root(), 0))
	assert.Equal(t, []storage.NodeID{2, 4}, drain(seek, 0), "original cursor is unaffected")

	clone.Free()
	plan.Free()
}

func TestNodeByIDSeek_ResetRewinds(t *testing.T) {
	g := newGraph(t, []int64{0, 1})
	plan := NewPlan(newQuery(g))
	seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 1, IncludeMin: true, IncludeMax: true})
	plan.SetRoot(seek)
	require.NoError(t, plan.Init())
	assert.Equal(t, []storage.NodeID{0, 1}, drain(seek, 0))
	require.NoError(t, plan.Reset())
	assert.Equal(t, []storage.NodeID{0, 1}, drain(seek, 0))
}

func TestNodeByIDSeek_DrivingChild(t *testing.T) {
	t.Run("every child row replays the range", func(t *testing.T) {
		g := newGraph(t, []int64{0, 1, 2})
		plan := NewPlan(newQuery(g))
		child := newScriptedChild(plan, 2, nil)
		seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 2, IncludeMin: true, IncludeMax: true})
		seek.AddChild(child)
		plan.SetRoot(seek)
		require.NoError(t, plan.Init())

		var got [][2]int64
		for r := seek.Consume(); r != nil; r = seek.Consume() {
			row, _ := r.GetByName("row")
			got = append(got, [2]int64{row.IntVal(), int64(r.GetNode(seek.nodeIdx).ID)})
			r.Free()
		}
		assert.Equal(t, [][2]int64{{1, 0}, {1, 1}, {1, 2}, {2, 0}, {2, 1}, {2, 2}}, got)
		plan.Free()
	})

	t.Run("one retry per call", func(t *testing.T) {
		g := newGraph(t, []int64{0, 1, 2})
		plan := NewPlan(newQuery(g))
		// The only node in range disappears before the second child row
		child := newScriptedChild(plan, 2, func(i int) {
			if i == 1 {
				require.NoError(t, g.DeleteNode(1))
			}
		})
		seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Min: 1, Max: 1, IncludeMin: true, IncludeMax: true})
		seek.AddChild(child)
		plan.SetRoot(seek)
		require.NoError(t, plan.Init())

		r := seek.Consume()
		require.NotNil(t, r)
		row, _ := r.GetByName("row")
		assert.Equal(t, int64(1), row.IntVal())
		assert.Equal(t, storage.NodeID(1), r.GetNode(seek.nodeIdx).ID)
		r.Free()

		assert.Nil(t, seek.Consume(), "second row's retry finds nothing")
		assert.Equal(t, 2, child.emitted)
		assert.Nil(t, seek.Consume())
		plan.Free()
	})

	t.Run("empty child", func(t *testing.T) {
		g := newGraph(t, []int64{0})
		plan := NewPlan(newQuery(g))
		seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 0, IncludeMin: true, IncludeMax: true})
		seek.AddChild(newScriptedChild(plan, 0, nil))
		plan.SetRoot(seek)
		require.NoError(t, plan.Init())
		assert.Nil(t, seek.Consume())
	})
}

func TestUpdate_SetThroughPlan(t *testing.T) {
	g := newGraph(t, []int64{10, 20, 30})
	q := newQuery(g)
	plan := NewPlan(q)
	m := plan.Mapping()
	seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 2, IncludeMin: true, IncludeMax: true})
	// n.age = n.age + 1, evaluated against the pre-update value
	set := NewUpdate(plan, true, update.NewEntityUpdateEvalCtx(m, "n", update.Merge, update.PropertySetCtx{
		Key:  "age",
		Expr: expr.NewBinary(expr.OpAdd, expr.NewProperty(expr.NewVariable(m, "n"), "age"), expr.NewConstant(value.Int(1))),
	}))
	set.AddChild(seek)
	proj := NewProject(plan, []expr.Aliased{{Expr: expr.NewProperty(expr.NewVariable(m, "n"), "age"), Alias: "age"}})
	proj.AddChild(set)
	res := NewResults(plan, "age")
	res.AddChild(proj)
	plan.SetRoot(res)

	require.NoError(t, plan.Execute(context.Background()))
	plan.Free()

	require.Equal(t, 3, q.ResultSet.Len())
	for i, want := range []int64{11, 21, 31} {
		assert.Equal(t, want, q.ResultSet.Row(i)[0].IntVal(), "rows observe the committed value")
		n, err := g.GetNode(storage.NodeID(i))
		require.NoError(t, err)
		assert.Equal(t, want, n.Properties["age"])
	}
	assert.Equal(t, 3, q.Stats.PropertiesSet)
	assert.Equal(t, 3, q.Stats.NodesUpdated)
}

func TestUpdate_NullDisallowedAbortsBeforeCommit(t *testing.T) {
	g := newGraph(t, []int64{10, 20})
	q := newQuery(g)
	plan := NewPlan(q)
	m := plan.Mapping()
	seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 1, IncludeMin: true, IncludeMax: true})
	set := NewUpdate(plan, false, update.NewEntityUpdateEvalCtx(m, "n", update.Merge,
		update.PropertySetCtx{Key: "age", Expr: expr.NewConstant(value.Null)},
	))
	set.AddChild(seek)
	plan.SetRoot(set)

	err := plan.Execute(context.Background())
	assert.ErrorIs(t, err, update.ErrNullProperty)
	plan.Free()

	n, err := g.GetNode(0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n.Properties["age"])
	assert.Zero(t, q.Stats.PropertiesSet)
}

func TestUpdate_NullAllowedRemoves(t *testing.T) {
	g := newGraph(t, []int64{10})
	q := newQuery(g)
	plan := NewPlan(q)
	m := plan.Mapping()
	seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 0, IncludeMin: true, IncludeMax: true})
	set := NewUpdate(plan, true, update.NewEntityUpdateEvalCtx(m, "n", update.Merge,
		update.PropertySetCtx{Key: "age", Expr: expr.NewConstant(value.Null)},
	))
	set.AddChild(seek)
	plan.SetRoot(set)

	require.NoError(t, plan.Execute(context.Background()))
	plan.Free()
	assert.Equal(t, 1, q.Stats.PropertiesRemoved)
	n, err := g.GetNode(0)
	require.NoError(t, err)
	assert.NotContains(t, n.Properties, "age")
}

func TestUpdate_SameNodeInSeveralRows(t *testing.T) {
	g := newGraph(t, []int64{10})
	q := newQuery(g)
	plan := NewPlan(q)
	m := plan.Mapping()
	// Each child row re-reads node 0, so the rows hold separate copies of it
	seek := NewNodeByIDSeek(plan, "n", UnsignedRange{Max: 0, IncludeMin: true, IncludeMax: true})
	seek.AddChild(newScriptedChild(plan, 2, nil))
	set := NewUpdate(plan, true, update.NewEntityUpdateEvalCtx(m, "n", update.Merge,
		update.PropertySetCtx{Key: "age", Expr: expr.NewConstant(value.Int(99))},
	))
	set.AddChild(seek)
	proj := NewProject(plan, []expr.Aliased{{Expr: expr.NewProperty(expr.NewVariable(m, "n"), "age"), Alias: "age"}})
	proj.AddChild(set)
	res := NewResults(plan, "age")
	res.AddChild(proj)
	plan.SetRoot(res)

	require.NoError(t, plan.Execute(context.Background()))
	plan.Free()

	require.Equal(t, 2, q.ResultSet.Len())
	for i := 0; i < 2; i++ {
		assert.Equal(t, int64(99), q.ResultSet.Row(i)[0].IntVal(), "row %d", i)
	}
	assert.Equal(t, 1, q.Stats.NodesUpdated, "one storage call per entity")
}

func TestFilter(t *testing.T) {
	g := newGraph(t, []int64{5, 20, 30, 1})
	q := newQuery(g)
	plan := scanPlan(q, UnsignedRange{Max: 3, IncludeMin: true, IncludeMax: true}, func(p *Plan) Operator {
		age := expr.NewProperty(expr.NewVariable(p.Mapping(), "n"), "age")
		return NewFilter(p, expr.NewBinary(expr.OpGt, age, expr.NewConstant(value.Int(10))))
	})
	require.NoError(t, plan.Execute(context.Background()))
	assert.Equal(t, []storage.NodeID{1, 2}, resultIDs(t, q.ResultSet))
	plan.Free()
}

func TestFilter_NonBooleanPredicate(t *testing.T) {
	q := newQuery(newGraph(t, []int64{1}))
	plan := scanPlan(q, UnsignedRange{Max: 0, IncludeMin: true, IncludeMax: true}, func(p *Plan) Operator {
		return NewFilter(p, expr.NewConstant(value.Int(1)))
	})
	assert.ErrorIs(t, plan.Execute(context.Background()), expr.ErrTypeMismatch)
	plan.Free()
}

func TestSkipLimit(t *testing.T) {
	g := newGraph(t, []int64{0, 1, 2, 3, 4})
	q := newQuery(g)
	plan := scanPlan(q, UnsignedRange{Max: 4, IncludeMin: true, IncludeMax: true},
		func(p *Plan) Operator { return NewSkip(p, 1) },
		func(p *Plan) Operator { return NewLimit(p, 2) },
	)
	require.NoError(t, plan.Execute(context.Background()))
	assert.Equal(t, []storage.NodeID{1, 2}, resultIDs(t, q.ResultSet))

	// A second run after Reset appends the same rows again
	require.NoError(t, plan.Reset())
	require.NoError(t, plan.Execute(context.Background()))
	assert.Equal(t, []storage.NodeID{1, 2, 1, 2}, resultIDs(t, q.ResultSet))
	plan.Free()
}

func TestSort(t *testing.T) {
	g := newGraph(t, []int64{30, 10, 20, 10})
	for _, desc := range []bool{false, true} {
		q := newQuery(g)
		plan := scanPlan(q, UnsignedRange{Max: 3, IncludeMin: true, IncludeMax: true}, func(p *Plan) Operator {
			age := expr.NewProperty(expr.NewVariable(p.Mapping(), "n"), "age")
			return NewSort(p, SortKey{Expr: age, Descending: desc})
		})
		require.NoError(t, plan.Execute(context.Background()))
		want := []storage.NodeID{1, 3, 2, 0}
		if desc {
			want = []storage.NodeID{0, 2, 1, 3}
		}
		assert.Equal(t, want, resultIDs(t, q.ResultSet), "descending=%v, ties keep input order", desc)
		plan.Free()
	}
}

func TestResults_RowLimit(t *testing.T) {
	q := NewQueryContext(newGraph(t, []int64{0, 1, 2}), "limited", Options{ResultSetLimit: 2})
	plan := scanPlan(q, UnsignedRange{Max: 2, IncludeMin: true, IncludeMax: true})
	err := plan.Execute(context.Background())
	assert.ErrorIs(t, err, ErrResultSetLimit)
	assert.Equal(t, 2, q.ResultSet.Len())
	plan.Free()
}

func TestPlan_ContextCancelled(t *testing.T) {
	q := newQuery(newGraph(t, []int64{0, 1}))
	plan := scanPlan(q, UnsignedRange{Max: 1, IncludeMin: true, IncludeMax: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := plan.Execute(ctx)
	assert.ErrorIs(t, err, ErrQueryAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, q.Aborted())
	plan.Free()
}

func TestPlan_ResetClearsAbort(t *testing.T) {
	q := newQuery(newGraph(t, []int64{0, 1}))
	plan := scanPlan(q, UnsignedRange{Max: 1, IncludeMin: true, IncludeMax: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, plan.Execute(ctx), context.Canceled)

	require.NoError(t, plan.Reset())
	assert.False(t, q.Aborted())
	require.NoError(t, plan.Execute(context.Background()))
	assert.Equal(t, []storage.NodeID{0, 1}, resultIDs(t, q.ResultSet))
	plan.Free()
}

func TestPlan_FirstAbortWins(t *testing.T) {
	q := newQuery(storage.NewMemoryEngine())
	q.Abort(update.ErrNullProperty)
	q.Abort(expr.ErrTypeMismatch)
	q.Abort(nil)
	assert.ErrorIs(t, q.Err(), update.ErrNullProperty)
}

func TestPlan_FreedPlanPanics(t *testing.T) {
	plan := scanPlan(newQuery(storage.NewMemoryEngine()), UnsignedRange{})
	plan.Free()
	plan.Free()
	assert.Panics(t, func() { _ = plan.Execute(context.Background()) })
	assert.Panics(t, func() { plan.Clone(newQuery(storage.NewMemoryEngine())) })
}

func TestPlan_NoRoot(t *testing.T) {
	plan := NewPlan(newQuery(storage.NewMemoryEngine()))
	assert.Error(t, plan.Execute(context.Background()))
}

func TestPlan_Describe(t *testing.T) {
	plan := scanPlan(newQuery(storage.NewMemoryEngine()), UnsignedRange{Max: 5, IncludeMin: true, IncludeMax: true})
	want := "Results | n\n" +
		"    Project | n AS n\n" +
		"        NodeByIdSeek | (n) 0 <= id(n) <= 5\n"
	assert.Equal(t, want, plan.Describe())
	plan.Free()
}

func TestPlan_TracksQueryInfo(t *testing.T) {
	tracker := queryinfo.NewTracker(4)
	q := NewQueryContext(newGraph(t, []int64{0}), "tracked", Options{Tracker: tracker, QueryLog: true})
	plan := scanPlan(q, UnsignedRange{Max: 0, IncludeMin: true, IncludeMax: true})
	require.NoError(t, plan.Execute(context.Background()))
	q.Finish()
	plan.Free()

	recent := tracker.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, q.ID, recent[0].ID)
	assert.Equal(t, "tracked", recent[0].Query)
	assert.Equal(t, queryinfo.StageFinished, recent[0].Stage())
}

func TestRunParallel(t *testing.T) {
	g := newGraph(t, []int64{0, 1, 2, 3, 4, 5}, 2)
	plan := scanPlan(newQuery(g), UnsignedRange{Max: 5, IncludeMin: true, IncludeMax: true})

	ctxs, err := RunParallel(context.Background(), plan, 4, func(int) *QueryContext { return newQuery(g) })
	require.NoError(t, err)
	require.Len(t, ctxs, 4)
	for _, q := range ctxs {
		assert.Equal(t, []storage.NodeID{0, 1, 3, 4, 5}, resultIDs(t, q.ResultSet))
	}

	// The source plan is still usable
	require.NoError(t, plan.Execute(context.Background()))
	assert.Equal(t, 5, plan.Context().ResultSet.Len())
	plan.Free()
}

func TestRunParallel_FailureCancelsOthers(t *testing.T) {
	g := newGraph(t, []int64{0, 1, 2})
	plan := scanPlan(newQuery(g), UnsignedRange{Max: 2, IncludeMin: true, IncludeMax: true})
	limits := []int{0, 1}
	ctxs, err := RunParallel(context.Background(), plan, 2, func(i int) *QueryContext {
		return NewQueryContext(g, "parallel", Options{ResultSetLimit: limits[i]})
	})
	assert.ErrorIs(t, err, ErrResultSetLimit)
	assert.ErrorIs(t, ctxs[1].Err(), ErrResultSetLimit)
	plan.Free()
}
