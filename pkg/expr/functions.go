package expr

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/orneryd/nornicexec/pkg/record"
	"github.com/orneryd/nornicexec/pkg/storage"
	"github.com/orneryd/nornicexec/pkg/value"
)

// FuncImpl computes a function result from evaluated arguments. Arguments
// are borrowed for the duration of the call; the result must not alias them.
type FuncImpl func(args []value.Value) (value.Value, error)

type funcDef struct {
	minArgs int
	maxArgs int // -1 for variadic
	impl    FuncImpl
}

var registry = map[string]funcDef{
	"toupper":       {1, 1, fnToUpper},
	"tolower":       {1, 1, fnToLower},
	"size":          {1, 1, fnSize},
	"id":            {1, 1, fnID},
	"labels":        {1, 1, fnLabels},
	"type":          {1, 1, fnType},
	"nodes":         {1, 1, fnNodes},
	"relationships": {1, 1, fnRelationships},
	"head":          {1, 1, fnHead},
	"last":          {1, 1, fnLast},
	"coalesce":      {1, -1, fnCoalesce},
	"tostring":      {1, 1, fnToString},
	"abs":           {1, 1, fnAbs},
}

// Functions returns the registered function names, sorted.
func Functions() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Function calls a registered function. Names are case insensitive.
type Function struct {
	Name string
	Args []Expression
	def  funcDef
}

// NewFunction resolves name and validates the argument count.
func NewFunction(name string, args ...Expression) (*Function, error) {
	def, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if len(args) < def.minArgs || (def.maxArgs >= 0 && len(args) > def.maxArgs) {
		return nil, fmt.Errorf("%w: %s received %d", ErrArity, name, len(args))
	}
	return &Function{Name: name, Args: args, def: def}, nil
}

func (f *Function) Evaluate(r *record.Record) (value.Value, error) {
	args := make([]value.Value, 0, len(f.Args))
	defer func() {
		for _, a := range args {
			a.Free()
		}
	}()
	for _, arg := range f.Args {
		v, err := arg.Evaluate(r)
		if err != nil {
			return value.Null, err
		}
		args = append(args, v)
	}
	out, err := f.def.impl(args)
	if err != nil {
		return value.Null, fmt.Errorf("%s(): %w", f.Name, err)
	}
	return out, nil
}

func (f *Function) Clone() Expression {
	return &Function{Name: f.Name, Args: cloneAll(f.Args), def: f.def}
}

func (f *Function) Free() { freeAll(f.Args) }

func (f *Function) String() string {
	return f.Name + "(" + joinExprs(f.Args) + ")"
}

func expect(v value.Value, kinds ...value.Kind) error {
	for _, k := range kinds {
		if v.Kind() == k {
			return nil
		}
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, strings.Join(names, " or "), v.Kind())
}

func fnToUpper(args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.Null, nil
	}
	if err := expect(args[0], value.KindString); err != nil {
		return value.Null, err
	}
	return value.String(strings.ToUpper(args[0].Str())), nil
}

func fnToLower(args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.Null, nil
	}
	if err := expect(args[0], value.KindString); err != nil {
		return value.Null, err
	}
	return value.String(strings.ToLower(args[0].Str())), nil
}

func fnSize(args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNull:
		return value.Null, nil
	case value.KindString:
		return value.Int(int64(len([]rune(v.Str())))), nil
	case value.KindList:
		return value.Int(int64(v.Len())), nil
	}
	return value.Null, expect(v, value.KindString, value.KindList)
}

func fnID(args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNull:
		return value.Null, nil
	case value.KindNode:
		return value.Int(int64(v.Node().ID)), nil
	case value.KindEdge:
		return value.Int(int64(v.Edge().ID)), nil
	}
	return value.Null, expect(v, value.KindNode, value.KindEdge)
}

func fnLabels(args []value.Value) (value.Value, error) {
	v := args[0]
	if v.IsNull() {
		return value.Null, nil
	}
	if err := expect(v, value.KindNode); err != nil {
		return value.Null, err
	}
	labels := make([]value.Value, len(v.Node().Labels))
	for i, l := range v.Node().Labels {
		labels[i] = value.String(l)
	}
	return value.NewList(labels...), nil
}

func fnType(args []value.Value) (value.Value, error) {
	v := args[0]
	if v.IsNull() {
		return value.Null, nil
	}
	if err := expect(v, value.KindEdge); err != nil {
		return value.Null, err
	}
	return value.String(v.Edge().Type), nil
}

func fnNodes(args []value.Value) (value.Value, error) {
	v := args[0]
	if v.IsNull() {
		return value.Null, nil
	}
	if err := expect(v, value.KindPath); err != nil {
		return value.Null, err
	}
	nodes := v.Path().Nodes
	items := make([]value.Value, len(nodes))
	for i, n := range nodes {
		items[i] = value.NodeRef(n)
	}
	return value.NewList(items...), nil
}

func fnRelationships(args []value.Value) (value.Value, error) {
	v := args[0]
	if v.IsNull() {
		return value.Null, nil
	}
	if err := expect(v, value.KindPath); err != nil {
		return value.Null, err
	}
	edges := v.Path().Edges
	items := make([]value.Value, len(edges))
	for i, e := range edges {
		items[i] = value.EdgeRef(e)
	}
	return value.NewList(items...), nil
}

func fnHead(args []value.Value) (value.Value, error) {
	v := args[0]
	if v.IsNull() {
		return value.Null, nil
	}
	if err := expect(v, value.KindList); err != nil {
		return value.Null, err
	}
	if v.Len() == 0 {
		return value.Null, nil
	}
	return v.ListAt(0).Clone(), nil
}

func fnLast(args []value.Value) (value.Value, error) {
	v := args[0]
	if v.IsNull() {
		return value.Null, nil
	}
	if err := expect(v, value.KindList); err != nil {
		return value.Null, err
	}
	if v.Len() == 0 {
		return value.Null, nil
	}
	return v.ListAt(v.Len() - 1).Clone(), nil
}

func fnCoalesce(args []value.Value) (value.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a.Clone(), nil
		}
	}
	return value.Null, nil
}

func fnToString(args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNull:
		return value.Null, nil
	case value.KindString, value.KindInt, value.KindFloat, value.KindBool:
		return value.String(v.String()), nil
	}
	return value.Null, expect(v, value.KindString, value.KindInt, value.KindFloat, value.KindBool)
}

func fnAbs(args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNull:
		return value.Null, nil
	case value.KindInt:
		if v.IntVal() < 0 {
			return value.Int(-v.IntVal()), nil
		}
		return v, nil
	case value.KindFloat:
		return value.Float(math.Abs(v.FloatVal())), nil
	}
	return value.Null, expect(v, value.KindInt, value.KindFloat)
}

// PathOf assembles a path from alternating node and edge aliases:
// n0, e0, n1, e1, n2...
type PathOf struct {
	Aliases []string
	offsets []int
}

// NewPathOf resolves the aliases against the plan mapping.
func NewPathOf(m *record.Mapping, aliases ...string) *PathOf {
	offsets := make([]int, len(aliases))
	for i, a := range aliases {
		offsets[i] = m.Register(a)
	}
	return &PathOf{Aliases: aliases, offsets: offsets}
}

func (p *PathOf) Evaluate(r *record.Record) (value.Value, error) {
	nodes := make([]*storage.Node, 0, len(p.offsets)/2+1)
	edges := make([]*storage.Edge, 0, len(p.offsets)/2)
	for i, idx := range p.offsets {
		if i%2 == 0 {
			n := r.GetNode(idx)
			if n == nil {
				return value.Null, fmt.Errorf("%w: %s is not a node", ErrTypeMismatch, p.Aliases[i])
			}
			nodes = append(nodes, n)
			continue
		}
		e := r.GetEdge(idx)
		if e == nil {
			return value.Null, fmt.Errorf("%w: %s is not an edge", ErrTypeMismatch, p.Aliases[i])
		}
		edges = append(edges, e)
	}
	return value.NewPath(nodes, edges), nil
}

func (p *PathOf) Clone() Expression {
	return &PathOf{Aliases: append([]string(nil), p.Aliases...), offsets: append([]int(nil), p.offsets...)}
}

func (p *PathOf) Free() {}

func (p *PathOf) String() string {
	return "path(" + strings.Join(p.Aliases, ", ") + ")"
}
