// Package value provides the tagged value that flows through query execution.
//
// A Value is either a primitive (string, integer, float, boolean, null), a
// graph-entity reference (node or edge) or a composite (path, list, map).
//
// Every Value carries an allocation tag describing who owns its data:
//
//   - Const: immutable data owned elsewhere (literals, primitives)
//   - Volatile: borrowed from a record or from storage; valid only while the
//     lender is alive
//   - Self: the value owns a heap block which must be released exactly once
//     with Free
//
// Persist turns a Volatile value into a Self value so it outlives its lender.
// Releasing the same heap block twice panics.
package value

import (
	"fmt"
	"math"

	"github.com/orneryd/nornicexec/pkg/storage"
)

// Kind is the runtime type of a Value.
type Kind uint16

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindNode
	KindEdge
	KindPath
	KindList
	KindMap
)

// String returns the user facing type name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindString:
		return "String"
	case KindInt:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Boolean"
	case KindNode:
		return "Node"
	case KindEdge:
		return "Edge"
	case KindPath:
		return "Path"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	default:
		return fmt.Sprintf("Kind(%d)", uint16(k))
	}
}

// Allocation describes ownership of a value's data.
type Allocation uint8

const (
	Const Allocation = iota
	Volatile
	Self
)

func (a Allocation) String() string {
	switch a {
	case Const:
		return "const"
	case Volatile:
		return "volatile"
	case Self:
		return "self"
	default:
		return "unknown"
	}
}

// MapEntry is one key/value pair of a map value. Entries keep insertion order.
type MapEntry struct {
	Key string
	Val Value
}

// Path is an alternating node/edge sequence. len(Edges) == len(Nodes)-1.
type Path struct {
	Nodes []*storage.Node
	Edges []*storage.Edge
}

// heap is the allocation behind composite values and entity handles.
type heap struct {
	list     []Value
	entries  []MapEntry
	path     *Path
	released bool
}

// Value is a tagged runtime value. The zero Value is null.
type Value struct {
	kind  Kind
	alloc Allocation

	s    string
	i    int64
	f    float64
	b    bool
	node *storage.Node
	edge *storage.Edge
	heap *heap
}

// Null is the null value.
var Null = Value{}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int creates an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float creates a float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// NodeRef creates a borrowed reference to a node.
func NodeRef(n *storage.Node) Value {
	if n == nil {
		return Null
	}
	return Value{kind: KindNode, alloc: Volatile, node: n}
}

// EdgeRef creates a borrowed reference to an edge.
func EdgeRef(e *storage.Edge) Value {
	if e == nil {
		return Null
	}
	return Value{kind: KindEdge, alloc: Volatile, edge: e}
}

// NewList creates an owned list. The list takes ownership of items.
func NewList(items ...Value) Value {
	return Value{kind: KindList, alloc: Self, heap: &heap{list: items}}
}

// NewMap creates an owned map. The map takes ownership of the entry values.
// A repeated key keeps the last value at the position of the first.
func NewMap(entries ...MapEntry) Value {
	deduped := make([]MapEntry, 0, len(entries))
	for _, e := range entries {
		replaced := false
		for i := range deduped {
			if deduped[i].Key == e.Key {
				deduped[i].Val.Free()
				deduped[i].Val = e.Val
				replaced = true
				break
			}
		}
		if !replaced {
			deduped = append(deduped, e)
		}
	}
	return Value{kind: KindMap, alloc: Self, heap: &heap{entries: deduped}}
}

// NewPath creates an owned path over shared entity references.
func NewPath(nodes []*storage.Node, edges []*storage.Edge) Value {
	p := &Path{
		Nodes: append([]*storage.Node(nil), nodes...),
		Edges: append([]*storage.Edge(nil), edges...),
	}
	return Value{kind: KindPath, alloc: Self, heap: &heap{path: p}}
}

// Kind returns the runtime type.
func (v Value) Kind() Kind { return v.kind }

// Allocation returns the ownership tag.
func (v Value) Allocation() Allocation { return v.alloc }

func (v Value) IsNull() bool { return v.kind == KindNull }

// IsGraphEntity reports whether v is a node or an edge.
func (v Value) IsGraphEntity() bool { return v.kind == KindNode || v.kind == KindEdge }

// IsNumeric reports whether v is an integer or a float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Str returns the string payload.
func (v Value) Str() string { return v.s }

// IntVal returns the integer payload.
func (v Value) IntVal() int64 { return v.i }

// FloatVal returns the float payload.
func (v Value) FloatVal() float64 { return v.f }

// BoolVal returns the boolean payload.
func (v Value) BoolVal() bool { return v.b }

// Numeric returns an integer or float payload as float64.
func (v Value) Numeric() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Node returns the referenced node, or nil.
func (v Value) Node() *storage.Node { return v.node }

// Edge returns the referenced edge, or nil.
func (v Value) Edge() *storage.Edge { return v.edge }

// Path returns the path payload, or nil.
func (v Value) Path() *Path {
	if v.kind != KindPath || v.heap == nil {
		return nil
	}
	return v.heap.path
}

// Len returns the number of list elements, map entries or path nodes.
func (v Value) Len() int {
	if v.heap == nil {
		return 0
	}
	switch v.kind {
	case KindList:
		return len(v.heap.list)
	case KindMap:
		return len(v.heap.entries)
	case KindPath:
		return len(v.heap.path.Nodes)
	}
	return 0
}

// ListAt returns a borrowed view of the i-th list element.
func (v Value) ListAt(i int) Value {
	return v.heap.list[i].Share()
}

// MapAt returns the i-th entry of a map; the value is a borrowed view.
func (v Value) MapAt(i int) (string, Value) {
	e := v.heap.entries[i]
	return e.Key, e.Val.Share()
}

// MapGet returns a borrowed view of the value under key.
func (v Value) MapGet(key string) (Value, bool) {
	if v.kind != KindMap || v.heap == nil {
		return Null, false
	}
	for _, e := range v.heap.entries {
		if e.Key == key {
			return e.Val.Share(), true
		}
	}
	return Null, false
}

// Share returns a borrowed view of v. The view must not outlive v and must
// not be freed.
func (v Value) Share() Value {
	if v.alloc == Self {
		v.alloc = Volatile
	}
	return v
}

// Clone returns a deep copy of v that owns its data. Entity references stay
// shared; cloning an entity yields an owned handle to the same entity.
func (v Value) Clone() Value {
	switch v.kind {
	case KindNode, KindEdge:
		v.alloc = Self
		v.heap = &heap{}
		return v
	case KindList:
		items := make([]Value, len(v.heap.list))
		for i, item := range v.heap.list {
			items[i] = item.Clone()
		}
		return NewList(items...)
	case KindMap:
		entries := make([]MapEntry, len(v.heap.entries))
		for i, e := range v.heap.entries {
			entries[i] = MapEntry{Key: e.Key, Val: e.Val.Clone()}
		}
		return Value{kind: KindMap, alloc: Self, heap: &heap{entries: entries}}
	case KindPath:
		return NewPath(v.heap.path.Nodes, v.heap.path.Edges)
	default:
		if v.alloc == Volatile {
			v.alloc = Self
		}
		return v
	}
}

// Persist detaches a Volatile value from its lender by deep-copying it.
// Const and Self values are left untouched.
func Persist(v *Value) {
	if v.alloc == Volatile {
		*v = v.Clone()
	}
}

// Free releases the heap block owned by a Self value. It is a no-op for
// Const and Volatile values. Freeing the same block twice panics.
func (v Value) Free() {
	if v.alloc != Self || v.heap == nil {
		return
	}
	if v.heap.released {
		panic(fmt.Sprintf("value: double free of %s", v.kind))
	}
	v.heap.released = true
	for _, item := range v.heap.list {
		item.Free()
	}
	for _, e := range v.heap.entries {
		e.Val.Free()
	}
}

// Released reports whether v's heap block has been freed.
func (v Value) Released() bool {
	return v.heap != nil && v.heap.released
}

// ToBool interprets v as a predicate result. ok is false for non booleans.
func (v Value) ToBool() (b, ok bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// isNaN reports whether a float value is NaN.
func (v Value) isNaN() bool {
	return v.kind == KindFloat && math.IsNaN(v.f)
}
