// Package expr evaluates expressions against records.
//
// The value returned by Evaluate belongs to the caller. It may be Const,
// a Volatile view borrowed from the input record or from storage, or a Self
// value the caller must Free. Callers that keep a result beyond the lifetime
// of the input record must value.Persist it first.
package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/value"
)

// Errors returned by Evaluate.
var (
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrUnknownFunction = errors.New("unknown function")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrArity           = errors.New("wrong number of arguments")
)

// Expression is an evaluable expression tree.
type Expression interface {
	Evaluate(r *record.Record) (value.Value, error)
	// Clone returns an independent copy for use by a cloned plan.
	Clone() Expression
	// Free releases values owned by the expression.
	Free()
	String() string
}

// Aliased pairs an expression with its resolved output name.
type Aliased struct {
	Expr  Expression
	Alias string
}

// Clone clones the expression and keeps the alias.
func (a Aliased) Clone() Aliased {
	return Aliased{Expr: a.Expr.Clone(), Alias: a.Alias}
}

// Constant is a literal value owned by the expression.
type Constant struct {
	val value.Value
}

// NewConstant takes ownership of v.
func NewConstant(v value.Value) *Constant {
	value.Persist(&v)
	return &Constant{val: v}
}

func (c *Constant) Evaluate(*record.Record) (value.Value, error) {
	return c.val.Share(), nil
}

func (c *Constant) Clone() Expression { return &Constant{val: c.val.Clone()} }

func (c *Constant) Free() {
	c.val.Free()
	c.val = value.Null
}

func (c *Constant) String() string {
	if c.val.Kind() == value.KindString {
		return fmt.Sprintf("%q", c.val.Str())
	}
	return c.val.String()
}

// Variable reads a record slot.
type Variable struct {
	Alias string
	idx   int
}

// NewVariable resolves alias against the plan mapping.
func NewVariable(m *record.Mapping, alias string) *Variable {
	return &Variable{Alias: alias, idx: m.Register(alias)}
}

// Offset returns the slot the variable reads.
func (v *Variable) Offset() int { return v.idx }

func (v *Variable) Evaluate(r *record.Record) (value.Value, error) {
	return r.Get(v.idx), nil
}

func (v *Variable) Clone() Expression { return &Variable{Alias: v.Alias, idx: v.idx} }
func (v *Variable) Free()             {}
func (v *Variable) String() string    { return v.Alias }

// Property reads a key from a node, an edge or a map.
type Property struct {
	Entity Expression
	Key    string
}

func NewProperty(entity Expression, key string) *Property {
	return &Property{Entity: entity, Key: key}
}

func (p *Property) Evaluate(r *record.Record) (value.Value, error) {
	ent, err := p.Entity.Evaluate(r)
	if err != nil {
		return value.Null, err
	}
	defer ent.Free()

	switch ent.Kind() {
	case value.KindNull:
		return value.Null, nil
	case value.KindNode:
		return value.FromAny(ent.Node().Properties[p.Key]), nil
	case value.KindEdge:
		return value.FromAny(ent.Edge().Properties[p.Key]), nil
	case value.KindMap:
		got, _ := ent.MapGet(p.Key)
		// The map may be owned by ent, which is released on return
		return got.Clone(), nil
	default:
		return value.Null, fmt.Errorf("%w: cannot read property %q of %s", ErrTypeMismatch, p.Key, ent.Kind())
	}
}

func (p *Property) Clone() Expression { return &Property{Entity: p.Entity.Clone(), Key: p.Key} }
func (p *Property) Free()             { p.Entity.Free() }
func (p *Property) String() string    { return p.Entity.String() + "." + p.Key }

// Not negates a boolean. Null stays null.
type Not struct {
	Expr Expression
}

func (n *Not) Evaluate(r *record.Record) (value.Value, error) {
	v, err := n.Expr.Evaluate(r)
	if err != nil {
		return value.Null, err
	}
	defer v.Free()
	if v.IsNull() {
		return value.Null, nil
	}
	b, ok := v.ToBool()
	if !ok {
		return value.Null, fmt.Errorf("%w: NOT expects Boolean, got %s", ErrTypeMismatch, v.Kind())
	}
	return value.Bool(!b), nil
}

func (n *Not) Clone() Expression { return &Not{Expr: n.Expr.Clone()} }
func (n *Not) Free()             { n.Expr.Free() }
func (n *Not) String() string    { return "NOT " + n.Expr.String() }

// ListLiteral builds a list from its item expressions.
type ListLiteral struct {
	Items []Expression
}

func (l *ListLiteral) Evaluate(r *record.Record) (value.Value, error) {
	items := make([]value.Value, 0, len(l.Items))
	for _, item := range l.Items {
		v, err := item.Evaluate(r)
		if err != nil {
			value.NewList(items...).Free()
			return value.Null, err
		}
		value.Persist(&v)
		items = append(items, v)
	}
	return value.NewList(items...), nil
}

func (l *ListLiteral) Clone() Expression { return &ListLiteral{Items: cloneAll(l.Items)} }
func (l *ListLiteral) Free()             { freeAll(l.Items) }

func (l *ListLiteral) String() string {
	return "[" + joinExprs(l.Items) + "]"
}

// MapLiteral builds a map. Keys and Values are parallel.
type MapLiteral struct {
	Keys   []string
	Values []Expression
}

func (m *MapLiteral) Evaluate(r *record.Record) (value.Value, error) {
	entries := make([]value.MapEntry, 0, len(m.Keys))
	for i, key := range m.Keys {
		v, err := m.Values[i].Evaluate(r)
		if err != nil {
			value.NewMap(entries...).Free()
			return value.Null, err
		}
		value.Persist(&v)
		entries = append(entries, value.MapEntry{Key: key, Val: v})
	}
	return value.NewMap(entries...), nil
}

func (m *MapLiteral) Clone() Expression {
	return &MapLiteral{Keys: append([]string(nil), m.Keys...), Values: cloneAll(m.Values)}
}

func (m *MapLiteral) Free() { freeAll(m.Values) }

func (m *MapLiteral) String() string {
	parts := make([]string, len(m.Keys))
	for i, k := range m.Keys {
		parts[i] = k + ": " + m.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Index reads a list element or a map entry. Negative list indexes count
// from the end; out of range reads are null. The result is owned by the
// caller, so node and edge elements come back as owned handles.
type Index struct {
	Expr  Expression
	Index Expression
}

func (x *Index) Evaluate(r *record.Record) (value.Value, error) {
	container, err := x.Expr.Evaluate(r)
	if err != nil {
		return value.Null, err
	}
	defer container.Free()
	idx, err := x.Index.Evaluate(r)
	if err != nil {
		return value.Null, err
	}
	defer idx.Free()

	if container.IsNull() || idx.IsNull() {
		return value.Null, nil
	}

	switch container.Kind() {
	case value.KindList:
		if idx.Kind() != value.KindInt {
			return value.Null, fmt.Errorf("%w: list index must be Integer, got %s", ErrTypeMismatch, idx.Kind())
		}
		i := idx.IntVal()
		n := int64(container.Len())
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return value.Null, nil
		}
		return container.ListAt(int(i)).Clone(), nil
	case value.KindMap:
		if idx.Kind() != value.KindString {
			return value.Null, fmt.Errorf("%w: map key must be String, got %s", ErrTypeMismatch, idx.Kind())
		}
		got, _ := container.MapGet(idx.Str())
		return got.Clone(), nil
	default:
		return value.Null, fmt.Errorf("%w: cannot index %s", ErrTypeMismatch, container.Kind())
	}
}

func (x *Index) Clone() Expression { return &Index{Expr: x.Expr.Clone(), Index: x.Index.Clone()} }

func (x *Index) Free() {
	x.Expr.Free()
	x.Index.Free()
}

func (x *Index) String() string { return x.Expr.String() + "[" + x.Index.String() + "]" }

func cloneAll(exprs []Expression) []Expression {
	out := make([]Expression, len(exprs))
	for i, e := range exprs {
		out[i] = e.Clone()
	}
	return out
}

func freeAll(exprs []Expression) {
	for _, e := range exprs {
		e.Free()
	}
}

func joinExprs(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
