// Package storage provides the graph storage engines consumed by the operator engine.
//
// Entities are addressed by dense unsigned identifiers. Identifiers freed by a
// delete leave holes that are reused by later creates, so the range
// [0, UncompactedNodeCount()) may contain ids with no live entity. Scans must
// skip those holes.
//
// Two implementations are provided:
//   - MemoryEngine: maps guarded by a RWMutex, used by tests and the CLI
//   - BadgerEngine: persistent storage on BadgerDB
package storage

import (
	"encoding/gob"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidData   = errors.New("invalid data")
	ErrStorageClosed = errors.New("storage closed")
)

// NodeID identifies a node. Ids are dense and reused after deletion.
type NodeID uint64

// EdgeID identifies an edge. Ids are dense and reused after deletion.
type EdgeID uint64

// Node is a labeled property-graph vertex.
//
// Properties hold plain Go values: string, int64, float64, bool, []any and
// map[string]any.
type Node struct {
	ID         NodeID
	Labels     []string
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Edge is a typed, directed relationship between two nodes.
type Edge struct {
	ID         EdgeID
	StartNode  NodeID
	EndNode    NodeID
	Type       string
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PropertyChanges is a batch of attribute mutations applied to one entity.
// Keys present in both Set and Remove are set.
type PropertyChanges struct {
	Set    map[string]any
	Remove []string
}

// Empty reports whether the batch carries no mutation.
func (c PropertyChanges) Empty() bool {
	return len(c.Set) == 0 && len(c.Remove) == 0
}

// ChangeSummary reports what a PropertyChanges batch did to an entity.
type ChangeSummary struct {
	Set     int
	Removed int
}

// Engine is the storage collaborator of the execution engine.
//
// Implementations must be safe for concurrent use: cloned execution plans
// running on separate goroutines share one Engine.
type Engine interface {
	CreateNode(node *Node) (NodeID, error)
	GetNode(id NodeID) (*Node, error)
	DeleteNode(id NodeID) error

	CreateEdge(edge *Edge) (EdgeID, error)
	GetEdge(id EdgeID) (*Edge, error)
	DeleteEdge(id EdgeID) error

	// GetOutgoingEdges returns the edges starting at nodeID in id order.
	GetOutgoingEdges(nodeID NodeID) ([]*Edge, error)
	// GetIncomingEdges returns the edges ending at nodeID in id order.
	GetIncomingEdges(nodeID NodeID) ([]*Edge, error)

	// UpdateNodeProperties applies a batch of changes to one node.
	UpdateNodeProperties(id NodeID, changes PropertyChanges) (ChangeSummary, error)
	// UpdateEdgeProperties applies a batch of changes to one edge.
	UpdateEdgeProperties(id EdgeID, changes PropertyChanges) (ChangeSummary, error)

	// UncompactedNodeCount is the number of node slots ever handed out,
	// deleted ones included. Every live node id is below this bound.
	UncompactedNodeCount() uint64
	// UncompactedEdgeCount is UncompactedNodeCount for edges.
	UncompactedEdgeCount() uint64

	NodeCount() (int64, error)
	EdgeCount() (int64, error)

	Close() error
}

func init() {
	// Property maps hold interface values; gob needs the concrete
	// composite types registered to round-trip them.
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

// applyChanges mutates props in place and reports the effect.
func applyChanges(props map[string]any, changes PropertyChanges) ChangeSummary {
	var summary ChangeSummary
	for _, key := range changes.Remove {
		if _, ok := changes.Set[key]; ok {
			continue
		}
		if _, ok := props[key]; ok {
			delete(props, key)
			summary.Removed++
		}
	}
	for key, val := range changes.Set {
		props[key] = val
		summary.Set++
	}
	return summary
}

func copyProperties(props map[string]any) map[string]any {
	copied := make(map[string]any, len(props))
	for k, v := range props {
		copied[k] = copyPropertyValue(v)
	}
	return copied
}

func copyPropertyValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyPropertyValue(item)
		}
		return out
	case map[string]any:
		return copyProperties(val)
	default:
		return v
	}
}

// CopyNode creates a deep copy of a node.
func CopyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	copied := &Node{
		ID:         n.ID,
		Labels:     make([]string, len(n.Labels)),
		Properties: copyProperties(n.Properties),
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
	copy(copied.Labels, n.Labels)
	return copied
}

// CopyEdge creates a deep copy of an edge.
func CopyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}
	return &Edge{
		ID:         e.ID,
		StartNode:  e.StartNode,
		EndNode:    e.EndNode,
		Type:       e.Type,
		Properties: copyProperties(e.Properties),
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}
