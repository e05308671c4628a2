package record

import (
	"fmt"
	"strings"

	"github.com/orneryd/nornicexec/pkg/storage"
	"github.com/orneryd/nornicexec/pkg/value"
)

// EntryType tags what a slot currently holds.
type EntryType uint8

const (
	EntryUnknown EntryType = iota
	EntryScalar
	EntryNode
	EntryEdge
)

func (t EntryType) String() string {
	switch t {
	case EntryScalar:
		return "scalar"
	case EntryNode:
		return "node"
	case EntryEdge:
		return "edge"
	default:
		return "unknown"
	}
}

type entry struct {
	typ  EntryType
	val  value.Value
	node *storage.Node
	edge *storage.Edge
}

// Record is a fixed-width row of tagged slots.
//
// Ownership moves with the record: whoever receives a record from Consume
// must either forward it or Free it, exactly once. Scalar slots own the
// values added to them; node and edge slots hold shared references.
type Record struct {
	mapping *Mapping
	entries []entry
	freed   bool
}

// New creates a record with one empty slot per mapped name.
func New(m *Mapping) *Record {
	return &Record{
		mapping: m,
		entries: make([]entry, m.Len()),
	}
}

// Mapping returns the shared name to offset mapping.
func (r *Record) Mapping() *Mapping { return r.mapping }

// Len returns the slot count.
func (r *Record) Len() int { return len(r.entries) }

func (r *Record) slot(idx int) *entry {
	if r.freed {
		panic("record: use after free")
	}
	return &r.entries[idx]
}

// AddScalar stores v at idx. The record takes ownership of v; any owned
// value previously held by the slot is released.
func (r *Record) AddScalar(idx int, v value.Value) {
	e := r.slot(idx)
	e.release()
	*e = entry{typ: EntryScalar, val: v}
}

// AddNode stores a shared reference to n at idx.
func (r *Record) AddNode(idx int, n *storage.Node) {
	e := r.slot(idx)
	e.release()
	*e = entry{typ: EntryNode, node: n}
}

// AddEdge stores a shared reference to edge at idx.
func (r *Record) AddEdge(idx int, edge *storage.Edge) {
	e := r.slot(idx)
	e.release()
	*e = entry{typ: EntryEdge, edge: edge}
}

// Add dispatches on the value kind. Graph entities are copied into the slot
// as references, so an owned entity handle stays owned by the caller and
// must still be freed by it. Any other value is moved into the record.
func (r *Record) Add(idx int, v value.Value) {
	switch v.Kind() {
	case value.KindNode:
		r.AddNode(idx, v.Node())
	case value.KindEdge:
		r.AddEdge(idx, v.Edge())
	default:
		r.AddScalar(idx, v)
	}
}

// Get returns a borrowed view of the slot. Empty slots read as null.
func (r *Record) Get(idx int) value.Value {
	e := r.slot(idx)
	switch e.typ {
	case EntryScalar:
		return e.val.Share()
	case EntryNode:
		return value.NodeRef(e.node)
	case EntryEdge:
		return value.EdgeRef(e.edge)
	default:
		return value.Null
	}
}

// GetNode returns the node at idx, or nil if the slot holds no node.
func (r *Record) GetNode(idx int) *storage.Node {
	return r.slot(idx).node
}

// GetEdge returns the edge at idx, or nil if the slot holds no edge.
func (r *Record) GetEdge(idx int) *storage.Edge {
	return r.slot(idx).edge
}

// Type returns the tag of the slot.
func (r *Record) Type(idx int) EntryType {
	return r.slot(idx).typ
}

// Contains reports whether the slot has been populated.
func (r *Record) Contains(idx int) bool {
	return r.slot(idx).typ != EntryUnknown
}

// GetByName resolves name through the mapping and returns the slot value.
func (r *Record) GetByName(name string) (value.Value, bool) {
	idx, ok := r.mapping.Lookup(name)
	if !ok || idx >= len(r.entries) {
		return value.Null, false
	}
	return r.Get(idx), true
}

// Remove clears the slot, releasing an owned value.
func (r *Record) Remove(idx int) {
	e := r.slot(idx)
	e.release()
	*e = entry{}
}

// Clone returns an independent record. Scalar values are duplicated while
// node and edge slots keep referencing the same entities.
func (r *Record) Clone() *Record {
	if r.freed {
		panic("record: clone after free")
	}
	clone := &Record{
		mapping: r.mapping,
		entries: make([]entry, len(r.entries)),
	}
	for i, e := range r.entries {
		if e.typ == EntryScalar && e.val.Allocation() == value.Self {
			e.val = e.val.Clone()
		}
		clone.entries[i] = e
	}
	return clone
}

// Free releases every owned slot value and invalidates the record.
// Calling Free again is a no-op since the tags are cleared.
func (r *Record) Free() {
	if r == nil || r.freed {
		return
	}
	for i := range r.entries {
		r.entries[i].release()
		r.entries[i] = entry{}
	}
	r.freed = true
}

// Freed reports whether Free has been called.
func (r *Record) Freed() bool { return r.freed }

// ToString renders every slot in offset order, comma separated.
func (r *Record) ToString() string {
	var sb strings.Builder
	for i := range r.entries {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(r.Get(i).String())
	}
	return sb.String()
}

// String implements fmt.Stringer for debugging.
func (r *Record) String() string {
	if r.freed {
		return "Record(freed)"
	}
	return fmt.Sprintf("Record[%s]", r.ToString())
}

func (e *entry) release() {
	if e.typ == EntryScalar {
		e.val.Free()
	}
}
