// Package storage provides storage implementations.
// MemoryEngine is a thread-safe in-memory storage for testing and small datasets.
package storage

import (
	"sort"
	"sync"
	"time"
)

// MemoryEngine is an in-memory implementation of Engine.
// It's useful for:
// - Unit testing (no disk I/O)
// - Running cloned plans against a shared graph without persistence
// - Small datasets that fit in RAM
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	nodeIDs *idAllocator
	edgeIDs *idAllocator

	// Adjacency, needed to detach edges when a node is deleted
	outgoingEdges map[NodeID]map[EdgeID]struct{}
	incomingEdges map[NodeID]map[EdgeID]struct{}

	closed bool
}

// NewMemoryEngine creates a new in-memory storage engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes:         make(map[NodeID]*Node),
		edges:         make(map[EdgeID]*Edge),
		nodeIDs:       newIDAllocator(),
		edgeIDs:       newIDAllocator(),
		outgoingEdges: make(map[NodeID]map[EdgeID]struct{}),
		incomingEdges: make(map[NodeID]map[EdgeID]struct{}),
	}
}

// CreateNode stores a copy of node under a freshly allocated id.
// The id is written back into node and returned.
func (m *MemoryEngine) CreateNode(node *Node) (NodeID, error) {
	if node == nil {
		return 0, ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStorageClosed
	}

	node.ID = NodeID(m.nodeIDs.allocate())
	now := time.Now()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.UpdatedAt = now

	// Deep copy to prevent external mutation
	m.nodes[node.ID] = CopyNode(node)
	return node.ID, nil
}

// GetNode retrieves a node by ID.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return nil, ErrNotFound
	}

	return CopyNode(node), nil
}

// DeleteNode removes a node and all its edges. The id becomes a hole.
func (m *MemoryEngine) DeleteNode(id NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	if _, exists := m.nodes[id]; !exists {
		return ErrNotFound
	}

	for edgeID := range m.outgoingEdges[id] {
		m.deleteEdgeLocked(edgeID)
	}
	for edgeID := range m.incomingEdges[id] {
		m.deleteEdgeLocked(edgeID)
	}
	delete(m.outgoingEdges, id)
	delete(m.incomingEdges, id)

	delete(m.nodes, id)
	m.nodeIDs.release(uint64(id))
	return nil
}

// CreateEdge stores a copy of edge under a freshly allocated id.
func (m *MemoryEngine) CreateEdge(edge *Edge) (EdgeID, error) {
	if edge == nil {
		return 0, ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStorageClosed
	}

	// Verify start and end nodes exist
	if _, exists := m.nodes[edge.StartNode]; !exists {
		return 0, ErrNotFound
	}
	if _, exists := m.nodes[edge.EndNode]; !exists {
		return 0, ErrNotFound
	}

	edge.ID = EdgeID(m.edgeIDs.allocate())
	now := time.Now()
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = now
	}
	edge.UpdatedAt = now
	m.edges[edge.ID] = CopyEdge(edge)

	if m.outgoingEdges[edge.StartNode] == nil {
		m.outgoingEdges[edge.StartNode] = make(map[EdgeID]struct{})
	}
	m.outgoingEdges[edge.StartNode][edge.ID] = struct{}{}

	if m.incomingEdges[edge.EndNode] == nil {
		m.incomingEdges[edge.EndNode] = make(map[EdgeID]struct{})
	}
	m.incomingEdges[edge.EndNode][edge.ID] = struct{}{}

	return edge.ID, nil
}

// GetEdge retrieves an edge by ID.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	edge, exists := m.edges[id]
	if !exists {
		return nil, ErrNotFound
	}

	return CopyEdge(edge), nil
}

// DeleteEdge removes an edge. The id becomes a hole.
func (m *MemoryEngine) DeleteEdge(id EdgeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	if _, exists := m.edges[id]; !exists {
		return ErrNotFound
	}
	m.deleteEdgeLocked(id)
	return nil
}

func (m *MemoryEngine) deleteEdgeLocked(id EdgeID) {
	edge, exists := m.edges[id]
	if !exists {
		return
	}
	if m.outgoingEdges[edge.StartNode] != nil {
		delete(m.outgoingEdges[edge.StartNode], id)
	}
	if m.incomingEdges[edge.EndNode] != nil {
		delete(m.incomingEdges[edge.EndNode], id)
	}
	delete(m.edges, id)
	m.edgeIDs.release(uint64(id))
}

// GetOutgoingEdges returns copies of the edges starting at nodeID.
func (m *MemoryEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	return m.adjacentEdges(nodeID, true)
}

// GetIncomingEdges returns copies of the edges ending at nodeID.
func (m *MemoryEngine) GetIncomingEdges(nodeID NodeID) ([]*Edge, error) {
	return m.adjacentEdges(nodeID, false)
}

func (m *MemoryEngine) adjacentEdges(nodeID NodeID, outgoing bool) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	if _, exists := m.nodes[nodeID]; !exists {
		return nil, ErrNotFound
	}

	index := m.incomingEdges
	if outgoing {
		index = m.outgoingEdges
	}
	ids := make([]EdgeID, 0, len(index[nodeID]))
	for id := range index[nodeID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	edges := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, CopyEdge(m.edges[id]))
	}
	return edges, nil
}

// UpdateNodeProperties applies changes to the stored node in one step.
func (m *MemoryEngine) UpdateNodeProperties(id NodeID, changes PropertyChanges) (ChangeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ChangeSummary{}, ErrStorageClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return ChangeSummary{}, ErrNotFound
	}
	if node.Properties == nil {
		node.Properties = make(map[string]any)
	}
	summary := applyChanges(node.Properties, PropertyChanges{
		Set:    copyProperties(changes.Set),
		Remove: changes.Remove,
	})
	node.UpdatedAt = time.Now()
	return summary, nil
}

// UpdateEdgeProperties applies changes to the stored edge in one step.
func (m *MemoryEngine) UpdateEdgeProperties(id EdgeID, changes PropertyChanges) (ChangeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ChangeSummary{}, ErrStorageClosed
	}

	edge, exists := m.edges[id]
	if !exists {
		return ChangeSummary{}, ErrNotFound
	}
	if edge.Properties == nil {
		edge.Properties = make(map[string]any)
	}
	summary := applyChanges(edge.Properties, PropertyChanges{
		Set:    copyProperties(changes.Set),
		Remove: changes.Remove,
	})
	edge.UpdatedAt = time.Now()
	return summary, nil
}

// UncompactedNodeCount returns the node id high-water mark.
func (m *MemoryEngine) UncompactedNodeCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodeIDs.uncompacted()
}

// UncompactedEdgeCount returns the edge id high-water mark.
func (m *MemoryEngine) UncompactedEdgeCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.edgeIDs.uncompacted()
}

// Close closes the storage engine.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.nodes = nil
	m.edges = nil
	m.outgoingEdges = nil
	m.incomingEdges = nil

	return nil
}

// NodeCount returns the number of nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}

	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}

	return int64(len(m.edges)), nil
}

// Verify MemoryEngine implements Engine interface
var _ Engine = (*MemoryEngine)(nil)
