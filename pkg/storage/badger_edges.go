// Package storage provides storage engine implementations for NornicDB.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Edge Operations
// ============================================================================

// CreateEdge creates a new edge between two existing nodes.
func (b *BadgerEngine) CreateEdge(edge *Edge) (EdgeID, error) {
	if edge == nil {
		return 0, ErrInvalidData
	}

	var id EdgeID
	err := b.withUpdate(func(txn *badger.Txn) error {
		// Verify start and end nodes exist
		if _, err := readNode(txn, edge.StartNode); err != nil {
			return err
		}
		if _, err := readNode(txn, edge.EndNode); err != nil {
			return err
		}

		id = EdgeID(b.edgeIDs.allocate())
		edge.ID = id
		now := time.Now()
		if edge.CreatedAt.IsZero() {
			edge.CreatedAt = now
		}
		edge.UpdatedAt = now

		return b.writeNewEdge(txn, edge)
	})
	if err != nil {
		return 0, err
	}

	b.edgeCache.Add(id, CopyEdge(edge))
	return id, nil
}

func (b *BadgerEngine) writeNewEdge(txn *badger.Txn, edge *Edge) error {
	data, err := encodeEdge(edge)
	if err != nil {
		return fmt.Errorf("failed to encode edge: %w", err)
	}
	if err := txn.Set(edgeKey(edge.ID), data); err != nil {
		return err
	}
	if err := txn.Set(adjacencyKey(prefixOutgoingIndex, edge.StartNode, edge.ID), []byte{}); err != nil {
		return err
	}
	if err := txn.Set(adjacencyKey(prefixIncomingIndex, edge.EndNode, edge.ID), []byte{}); err != nil {
		return err
	}
	return saveAllocator(txn, metaEdgeIDs, b.edgeIDs)
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}

	if cached, ok := b.edgeCache.Get(id); ok {
		return CopyEdge(cached), nil
	}

	var edge *Edge
	err := b.withView(func(txn *badger.Txn) error {
		var err error
		edge, err = readEdge(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	b.edgeCache.Add(id, CopyEdge(edge))
	return edge, nil
}

func readEdge(txn *badger.Txn, id EdgeID) (*Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var edge *Edge
	err = item.Value(func(val []byte) error {
		var decodeErr error
		edge, decodeErr = decodeEdge(val)
		return decodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode edge %d: %w", id, err)
	}
	return edge, nil
}

// UpdateEdgeProperties applies changes to one edge in a single transaction.
func (b *BadgerEngine) UpdateEdgeProperties(id EdgeID, changes PropertyChanges) (ChangeSummary, error) {
	var summary ChangeSummary
	var updated *Edge
	err := b.withUpdate(func(txn *badger.Txn) error {
		edge, err := readEdge(txn, id)
		if err != nil {
			return err
		}
		summary = applyChanges(edge.Properties, changes)
		edge.UpdatedAt = time.Now()

		data, err := encodeEdge(edge)
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}
		if err := txn.Set(edgeKey(id), data); err != nil {
			return err
		}
		updated = edge
		return nil
	})
	if err != nil {
		b.edgeCache.Remove(id)
		return ChangeSummary{}, err
	}

	b.edgeCache.Add(id, CopyEdge(updated))
	return summary, nil
}

// DeleteEdge removes an edge and its adjacency entries.
func (b *BadgerEngine) DeleteEdge(id EdgeID) error {
	err := b.withUpdate(func(txn *badger.Txn) error {
		if err := b.deleteEdgeInTxn(txn, id); err != nil {
			return err
		}
		return saveAllocator(txn, metaEdgeIDs, b.edgeIDs)
	})
	if err != nil {
		return err
	}
	b.edgeCache.Remove(id)
	return nil
}

// deleteEdgeInTxn removes the edge record and index keys and releases the id.
// The caller persists the edge allocator.
func (b *BadgerEngine) deleteEdgeInTxn(txn *badger.Txn, id EdgeID) error {
	edge, err := readEdge(txn, id)
	if err != nil {
		return err
	}
	if err := txn.Delete(edgeKey(id)); err != nil {
		return err
	}
	if err := txn.Delete(adjacencyKey(prefixOutgoingIndex, edge.StartNode, id)); err != nil {
		return err
	}
	if err := txn.Delete(adjacencyKey(prefixIncomingIndex, edge.EndNode, id)); err != nil {
		return err
	}
	b.edgeIDs.release(uint64(id))
	return nil
}

// GetOutgoingEdges returns the edges starting at nodeID in id order.
func (b *BadgerEngine) GetOutgoingEdges(nodeID NodeID) ([]*Edge, error) {
	return b.adjacentEdges(prefixOutgoingIndex, nodeID)
}

// GetIncomingEdges returns the edges ending at nodeID in id order.
func (b *BadgerEngine) GetIncomingEdges(nodeID NodeID) ([]*Edge, error) {
	return b.adjacentEdges(prefixIncomingIndex, nodeID)
}

func (b *BadgerEngine) adjacentEdges(prefix byte, nodeID NodeID) ([]*Edge, error) {
	var edges []*Edge
	err := b.withView(func(txn *badger.Txn) error {
		if _, err := readNode(txn, nodeID); err != nil {
			return err
		}
		for _, id := range collectAdjacency(txn, prefix, nodeID) {
			edge, err := readEdge(txn, id)
			if err != nil {
				return err
			}
			edges = append(edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}
