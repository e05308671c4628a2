package record

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicexec/pkg/storage"
	"github.com/orneryd/nornicexec/pkg/value"
)

func mappingOf(names ...string) *Mapping {
	m := NewMapping()
	for _, n := range names {
		m.Register(n)
	}
	return m
}

func TestMapping_Register(t *testing.T) {
	m := NewMapping()
	assert.Equal(t, 0, m.Register("a"))
	assert.Equal(t, 1, m.Register("b"))
	assert.Equal(t, 0, m.Register("a"), "register is idempotent")
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"a", "b"}, m.Names())

	idx, ok := m.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = m.Lookup("c")
	assert.False(t, ok)

	m.Freeze()
	assert.True(t, m.Frozen())
	assert.Equal(t, 1, m.Register("b"), "known names still resolve when frozen")
	assert.Panics(t, func() { m.Register("c") })
}

func TestMapping_FreezeConcurrent(t *testing.T) {
	m := mappingOf("a", "b")
	m.Freeze()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Freeze()
			idx, ok := m.Lookup("b")
			assert.True(t, ok)
			assert.Equal(t, 1, idx)
		}()
	}
	wg.Wait()
	assert.True(t, m.Frozen())
}

func TestRecord_ToString(t *testing.T) {
	m := mappingOf("s", "neg", "pos", "f", "null", "b")
	r := New(m)
	r.AddScalar(0, value.String("Hello"))
	r.AddScalar(1, value.Int(-24))
	r.AddScalar(2, value.Int(24))
	r.AddScalar(3, value.Float(0.314))
	r.AddScalar(4, value.Null)
	r.AddScalar(5, value.Bool(true))

	got := r.ToString()
	assert.Equal(t, "Hello,-24,24,0.314000,NULL,true", got)
	assert.Len(t, got, 31)
	r.Free()
}

func TestRecord_EntitySlots(t *testing.T) {
	m := mappingOf("n", "e", "x")
	r := New(m)
	node := &storage.Node{ID: 4}
	edge := &storage.Edge{ID: 9}

	r.Add(0, value.NodeRef(node))
	r.Add(1, value.EdgeRef(edge))

	assert.Equal(t, EntryNode, r.Type(0))
	assert.Same(t, node, r.GetNode(0))
	assert.Same(t, edge, r.GetEdge(1))
	assert.Nil(t, r.GetNode(1))
	assert.False(t, r.Contains(2))
	assert.True(t, r.Get(2).IsNull())
	assert.Equal(t, "(4),[9],NULL", r.ToString())

	v, ok := r.GetByName("n")
	require.True(t, ok)
	assert.Equal(t, value.KindNode, v.Kind())
	_, ok = r.GetByName("missing")
	assert.False(t, ok)
}

func TestRecord_AddEntityHandleStaysWithCaller(t *testing.T) {
	m := mappingOf("n")
	r := New(m)
	handle := value.NodeRef(&storage.Node{ID: 1}).Clone()

	r.Add(0, handle)
	handle.Free()

	// The slot still references the node after the handle is released
	assert.Equal(t, storage.NodeID(1), r.GetNode(0).ID)
	assert.NotPanics(t, r.Free)
}

func TestRecord_Clone(t *testing.T) {
	m := mappingOf("n", "list", "i")
	node := &storage.Node{ID: 2}
	r := New(m)
	r.AddNode(0, node)
	r.AddScalar(1, value.NewList(value.Int(1), value.Int(2)))
	r.AddScalar(2, value.Int(7))

	clone := r.Clone()
	assert.Same(t, node, clone.GetNode(0), "entity references are shared")

	// Scalars are duplicated: freeing the original leaves the clone intact
	r.Free()
	assert.Equal(t, "(2),[1, 2],7", clone.ToString())
	assert.NotPanics(t, clone.Free)
}

func TestRecord_FreeReleasesOwnedSlots(t *testing.T) {
	m := mappingOf("list", "borrowed", "n")
	owned := value.NewList(value.Int(1))
	lender := value.NewList(value.Int(2))

	r := New(m)
	r.AddScalar(0, owned)
	r.AddScalar(1, lender.Share())
	r.AddNode(2, &storage.Node{ID: 0})

	r.Free()
	assert.True(t, owned.Released())
	assert.False(t, lender.Released(), "borrowed slots are not released")
	assert.True(t, r.Freed())

	// Tags are cleared, so repeated Free is harmless
	assert.NotPanics(t, r.Free)
	assert.Panics(t, func() { r.Get(0) })
	lender.Free()
}

func TestRecord_OverwriteAndRemove(t *testing.T) {
	m := mappingOf("a")
	first := value.NewList(value.Int(1))
	r := New(m)
	r.AddScalar(0, first)
	r.AddScalar(0, value.Int(3))
	assert.True(t, first.Released(), "overwritten owned value is released")

	r.Remove(0)
	assert.False(t, r.Contains(0))
	r.Free()
}
