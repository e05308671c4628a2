package update

import (
	"fmt"

	"github.com/orneryd/nornicexec/pkg/resultset"
	"github.com/orneryd/nornicexec/pkg/storage"
)

// PendingUpdate is a staged change to one entity.
type PendingUpdate struct {
	Kind EntityKind
	Node *storage.Node
	Edge *storage.Edge

	// Replace is set when a replacing clause touched the entity.
	Replace bool
	changes *changeSet

	// Every distinct handle staged for the entity. Storage hands out a
	// fresh copy per read, so rows binding the same entity rarely share one.
	nodeHandles []*storage.Node
	edgeHandles []*storage.Edge
}

func (p *PendingUpdate) addNodeHandle(n *storage.Node) {
	for _, h := range p.nodeHandles {
		if h == n {
			return
		}
	}
	p.nodeHandles = append(p.nodeHandles, n)
}

func (p *PendingUpdate) addEdgeHandle(e *storage.Edge) {
	for _, h := range p.edgeHandles {
		if h == e {
			return
		}
	}
	p.edgeHandles = append(p.edgeHandles, e)
}

// ID returns the id of the updated entity.
func (p *PendingUpdate) ID() uint64 {
	if p.Kind == KindEdge {
		return uint64(p.Edge.ID)
	}
	return uint64(p.Node.ID)
}

// Changes returns the batch that will be sent to storage.
func (p *PendingUpdate) Changes() storage.PropertyChanges {
	return p.changes.toStorage()
}

// Buffer accumulates pending updates, one per entity. Staging another
// update for an entity already in the buffer merges into it in evaluation
// order, so commit issues a single storage call per entity.
type Buffer struct {
	nodes     []*PendingUpdate
	edges     []*PendingUpdate
	nodeIndex map[storage.NodeID]*PendingUpdate
	edgeIndex map[storage.EdgeID]*PendingUpdate
}

func NewBuffer() *Buffer {
	return &Buffer{
		nodeIndex: make(map[storage.NodeID]*PendingUpdate),
		edgeIndex: make(map[storage.EdgeID]*PendingUpdate),
	}
}

// Len returns the number of entities with pending updates of kind.
func (b *Buffer) Len(kind EntityKind) int {
	if kind == KindEdge {
		return len(b.edges)
	}
	return len(b.nodes)
}

// Pending returns the staged updates of kind in staging order.
func (b *Buffer) Pending(kind EntityKind) []*PendingUpdate {
	if kind == KindEdge {
		return b.edges
	}
	return b.nodes
}

// Clear drops every staged update of kind.
func (b *Buffer) Clear(kind EntityKind) {
	if kind == KindEdge {
		b.edges = nil
		b.edgeIndex = make(map[storage.EdgeID]*PendingUpdate)
		return
	}
	b.nodes = nil
	b.nodeIndex = make(map[storage.NodeID]*PendingUpdate)
}

func (b *Buffer) stageNode(n *storage.Node, changes *changeSet, replace bool) {
	if p, ok := b.nodeIndex[n.ID]; ok {
		if replace {
			dropUnassigned(p.changes, changes)
		}
		p.changes.merge(changes)
		p.Replace = p.Replace || replace
		p.addNodeHandle(n)
		return
	}
	p := &PendingUpdate{Kind: KindNode, Node: n, Replace: replace, changes: changes, nodeHandles: []*storage.Node{n}}
	b.nodeIndex[n.ID] = p
	b.nodes = append(b.nodes, p)
}

func (b *Buffer) stageEdge(e *storage.Edge, changes *changeSet, replace bool) {
	if p, ok := b.edgeIndex[e.ID]; ok {
		if replace {
			dropUnassigned(p.changes, changes)
		}
		p.changes.merge(changes)
		p.Replace = p.Replace || replace
		p.addEdgeHandle(e)
		return
	}
	p := &PendingUpdate{Kind: KindEdge, Edge: e, Replace: replace, changes: changes, edgeHandles: []*storage.Edge{e}}
	b.edgeIndex[e.ID] = p
	b.edges = append(b.edges, p)
}

// dropUnassigned marks for removal every key staged earlier that the
// replacing batch does not assign.
func dropUnassigned(staged, replacing *changeSet) {
	for key := range staged.set {
		if _, ok := replacing.set[key]; !ok {
			replacing.remove(key)
		}
	}
}

// CommitUpdates applies every staged update of kind against the graph, one
// storage call per entity, and clears them from buf.
//
// Every staged entity handle is refreshed so records still holding them observe
// the new attributes. Statistics are updated as a side effect.
func CommitUpdates(graph storage.Engine, stats *resultset.Statistics, buf *Buffer, kind EntityKind) error {
	defer buf.Clear(kind)

	for _, p := range buf.Pending(kind) {
		changes := p.Changes()
		if changes.Empty() {
			continue
		}

		var (
			summary storage.ChangeSummary
			err     error
		)
		if kind == KindEdge {
			summary, err = graph.UpdateEdgeProperties(p.Edge.ID, changes)
		} else {
			summary, err = graph.UpdateNodeProperties(p.Node.ID, changes)
		}
		if err != nil {
			return fmt.Errorf("failed to update %s %d: %w", kind, p.ID(), err)
		}

		refreshHandles(p, changes)
		if stats != nil {
			stats.PropertiesSet += summary.Set
			stats.PropertiesRemoved += summary.Removed
			if kind == KindEdge {
				stats.RelationshipsUpdated++
			} else {
				stats.NodesUpdated++
			}
		}
	}
	return nil
}

// refreshHandles applies committed changes to every staged handle of the
// entity so all records holding one observe the new attributes.
func refreshHandles(p *PendingUpdate, changes storage.PropertyChanges) {
	if p.Kind == KindEdge {
		for _, e := range p.edgeHandles {
			if e.Properties == nil {
				e.Properties = make(map[string]any)
			}
			applyChanges(e.Properties, changes)
		}
		return
	}
	for _, n := range p.nodeHandles {
		if n.Properties == nil {
			n.Properties = make(map[string]any)
		}
		applyChanges(n.Properties, changes)
	}
}

func applyChanges(props map[string]any, changes storage.PropertyChanges) {
	for _, key := range changes.Remove {
		delete(props, key)
	}
	for key, v := range changes.Set {
		props[key] = v
	}
}
