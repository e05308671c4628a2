package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/storage"
	"github.com/orneryd/nornicexec/pkg/value"
)

type fixture struct {
	m     *record.Mapping
	r     *record.Record
	alice *storage.Node
	bob   *storage.Node
	knows *storage.Edge
}

func newFixture() *fixture {
	f := &fixture{
		m:     record.NewMapping(),
		alice: &storage.Node{ID: 0, Labels: []string{"Person"}, Properties: map[string]any{"name": "Alice", "age": int64(30)}},
		bob:   &storage.Node{ID: 1, Labels: []string{"Person", "Admin"}, Properties: map[string]any{"name": "Bob"}},
		knows: &storage.Edge{ID: 5, StartNode: 0, EndNode: 1, Type: "KNOWS", Properties: map[string]any{"since": int64(2020)}},
	}
	a := f.m.Register("a")
	e := f.m.Register("e")
	b := f.m.Register("b")
	x := f.m.Register("x")
	f.r = record.New(f.m)
	f.r.AddNode(a, f.alice)
	f.r.AddEdge(e, f.knows)
	f.r.AddNode(b, f.bob)
	f.r.AddScalar(x, value.Int(10))
	return f
}

func eval(t *testing.T, e Expression, r *record.Record) value.Value {
	t.Helper()
	v, err := e.Evaluate(r)
	require.NoError(t, err)
	return v
}

func mustFunc(t *testing.T, name string, args ...Expression) *Function {
	t.Helper()
	f, err := NewFunction(name, args...)
	require.NoError(t, err)
	return f
}

func TestVariableAndProperty(t *testing.T) {
	f := newFixture()

	v := eval(t, NewVariable(f.m, "x"), f.r)
	assert.Equal(t, int64(10), v.IntVal())
	assert.NotEqual(t, value.Self, v.Allocation())

	name := eval(t, NewProperty(NewVariable(f.m, "a"), "name"), f.r)
	assert.Equal(t, "Alice", name.Str())
	assert.Equal(t, value.Volatile, name.Allocation())

	since := eval(t, NewProperty(NewVariable(f.m, "e"), "since"), f.r)
	assert.Equal(t, int64(2020), since.IntVal())

	missing := eval(t, NewProperty(NewVariable(f.m, "a"), "nope"), f.r)
	assert.True(t, missing.IsNull())

	_, err := NewProperty(NewVariable(f.m, "x"), "name").Evaluate(f.r)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestBinary(t *testing.T) {
	f := newFixture()
	c := func(v value.Value) Expression { return NewConstant(v) }

	tests := []struct {
		name string
		expr Expression
		want string
	}{
		{"int add", NewBinary(OpAdd, NewVariable(f.m, "x"), c(value.Int(5))), "15"},
		{"mixed mul", NewBinary(OpMul, c(value.Int(2)), c(value.Float(1.5))), "3.000000"},
		{"int div", NewBinary(OpDiv, c(value.Int(7)), c(value.Int(2))), "3"},
		{"string concat", NewBinary(OpAdd, c(value.String("n=")), c(value.Int(1))), "n=1"},
		{"list concat", NewBinary(OpAdd, &ListLiteral{Items: []Expression{c(value.Int(1))}}, c(value.Int(2))), `[1, 2]`},
		{"null arithmetic", NewBinary(OpSub, c(value.Null), c(value.Int(1))), "NULL"},
		{"lt", NewBinary(OpLt, c(value.Int(1)), c(value.Float(1.5))), "true"},
		{"eq", NewBinary(OpEq, c(value.String("a")), c(value.String("a"))), "true"},
		{"eq null", NewBinary(OpEq, c(value.Null), c(value.Null)), "NULL"},
		{"mixed kinds lt", NewBinary(OpLt, c(value.String("a")), c(value.Int(1))), "NULL"},
		{"and false wins", NewBinary(OpAnd, c(value.Null), c(value.Bool(false))), "false"},
		{"and null", NewBinary(OpAnd, c(value.Null), c(value.Bool(true))), "NULL"},
		{"or true wins", NewBinary(OpOr, c(value.Null), c(value.Bool(true))), "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := eval(t, tt.expr, f.r)
			assert.Equal(t, tt.want, v.String())
			v.Free()
			tt.expr.Free()
		})
	}

	_, err := NewBinary(OpDiv, c(value.Int(1)), c(value.Int(0))).Evaluate(f.r)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = NewBinary(OpSub, c(value.String("a")), c(value.Int(0))).Evaluate(f.r)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = NewBinary(OpAnd, c(value.Int(1)), c(value.Bool(true))).Evaluate(f.r)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestNot(t *testing.T) {
	f := newFixture()
	v := eval(t, &Not{Expr: NewConstant(value.Bool(true))}, f.r)
	assert.Equal(t, "false", v.String())

	v = eval(t, &Not{Expr: NewConstant(value.Null)}, f.r)
	assert.True(t, v.IsNull())

	_, err := (&Not{Expr: NewConstant(value.Int(1))}).Evaluate(f.r)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestFunctions(t *testing.T) {
	f := newFixture()
	a := func() Expression { return NewVariable(f.m, "a") }
	c := func(v value.Value) Expression { return NewConstant(v) }

	tests := []struct {
		name string
		fn   string
		args []Expression
		want string
	}{
		{"toUpper", "toUpper", []Expression{NewProperty(a(), "name")}, "ALICE"},
		{"toLower", "TOLOWER", []Expression{c(value.String("MiXeD"))}, "mixed"},
		{"size string", "size", []Expression{c(value.String("héllo"))}, "5"},
		{"size list", "size", []Expression{&ListLiteral{Items: []Expression{c(value.Int(1)), c(value.Int(2))}}}, "2"},
		{"id", "id", []Expression{NewVariable(f.m, "b")}, "1"},
		{"labels", "labels", []Expression{NewVariable(f.m, "b")}, `["Person", "Admin"]`},
		{"type", "type", []Expression{NewVariable(f.m, "e")}, "KNOWS"},
		{"nodes", "nodes", []Expression{NewPathOf(f.m, "a", "e", "b")}, "[(0), (1)]"},
		{"relationships", "relationships", []Expression{NewPathOf(f.m, "a", "e", "b")}, "[[5]]"},
		{"head", "head", []Expression{&ListLiteral{Items: []Expression{c(value.Int(3)), c(value.Int(4))}}}, "3"},
		{"last", "last", []Expression{&ListLiteral{Items: []Expression{c(value.Int(3)), c(value.Int(4))}}}, "4"},
		{"head empty", "head", []Expression{&ListLiteral{}}, "NULL"},
		{"coalesce", "coalesce", []Expression{c(value.Null), NewProperty(a(), "age")}, "30"},
		{"toString", "toString", []Expression{c(value.Float(2.5))}, "2.500000"},
		{"abs", "abs", []Expression{c(value.Int(-4))}, "4"},
		{"null passthrough", "toUpper", []Expression{c(value.Null)}, "NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := mustFunc(t, tt.fn, tt.args...)
			v := eval(t, fn, f.r)
			assert.Equal(t, tt.want, v.String())
			v.Free()
			fn.Free()
		})
	}
}

func TestFunctionErrors(t *testing.T) {
	_, err := NewFunction("nope", NewConstant(value.Int(1)))
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = NewFunction("abs")
	assert.ErrorIs(t, err, ErrArity)

	fn, err := NewFunction("abs", NewConstant(value.String("x")))
	require.NoError(t, err)
	_, err = fn.Evaluate(record.New(record.NewMapping()))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	assert.Contains(t, Functions(), "coalesce")
}

func TestIndex_NodeFromPathIsOwnedHandle(t *testing.T) {
	f := newFixture()
	nodes := mustFunc(t, "nodes", NewPathOf(f.m, "a", "e", "b"))

	first := eval(t, &Index{Expr: nodes, Index: NewConstant(value.Int(0))}, f.r)
	require.Equal(t, value.KindNode, first.Kind())
	assert.Equal(t, value.Self, first.Allocation())
	assert.Same(t, f.alice, first.Node())
	first.Free()
	assert.Panics(t, func() { first.Free() })

	lastIdx := eval(t, &Index{Expr: nodes.Clone(), Index: NewConstant(value.Int(-1))}, f.r)
	assert.Same(t, f.bob, lastIdx.Node())
	lastIdx.Free()

	oob := eval(t, &Index{Expr: nodes.Clone(), Index: NewConstant(value.Int(9))}, f.r)
	assert.True(t, oob.IsNull())
}

func TestMapLiteralAndIndex(t *testing.T) {
	f := newFixture()
	m := &MapLiteral{
		Keys:   []string{"n", "name"},
		Values: []Expression{NewVariable(f.m, "x"), NewProperty(NewVariable(f.m, "a"), "name")},
	}
	v := eval(t, m, f.r)
	assert.Equal(t, `{n: 10, name: "Alice"}`, v.String())
	assert.Equal(t, value.Self, v.Allocation())
	v.Free()

	got := eval(t, &Index{Expr: m.Clone(), Index: NewConstant(value.String("name"))}, f.r)
	assert.Equal(t, "Alice", got.Str())
	assert.Equal(t, `{n: x, name: a.name}`, m.String())
}

func TestClone_Independent(t *testing.T) {
	list := &ListLiteral{Items: []Expression{NewConstant(value.NewList(value.Int(1)))}}
	clone := list.Clone()
	list.Free()

	v := eval(t, clone, record.New(record.NewMapping()))
	assert.Equal(t, "[[1]]", v.String())
	v.Free()
	clone.Free()
}
