// Package storage provides storage engine implementations for NornicDB.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Node Operations
// ============================================================================

// CreateNode creates a new node in persistent storage under a freshly
// allocated id. The id is written back into node and returned.
func (b *BadgerEngine) CreateNode(node *Node) (NodeID, error) {
	if node == nil {
		return 0, ErrInvalidData
	}

	var id NodeID
	err := b.withUpdate(func(txn *badger.Txn) error {
		id = NodeID(b.nodeIDs.allocate())
		node.ID = id
		now := time.Now()
		if node.CreatedAt.IsZero() {
			node.CreatedAt = now
		}
		node.UpdatedAt = now

		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		if err := txn.Set(nodeKey(id), data); err != nil {
			return err
		}
		return saveAllocator(txn, metaNodeIDs, b.nodeIDs)
	})
	if err != nil {
		return 0, err
	}

	b.nodeCache.Add(id, CopyNode(node))
	return id, nil
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}

	// Check cache first
	if cached, ok := b.nodeCache.Get(id); ok {
		// Return copy to prevent external mutation of cache
		return CopyNode(cached), nil
	}

	var node *Node
	err := b.withView(func(txn *badger.Txn) error {
		var err error
		node, err = readNode(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	b.nodeCache.Add(id, CopyNode(node))
	return node, nil
}

func readNode(txn *badger.Txn, id NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var node *Node
	err = item.Value(func(val []byte) error {
		var decodeErr error
		node, decodeErr = decodeNode(val)
		return decodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode node %d: %w", id, err)
	}
	return node, nil
}

// UpdateNodeProperties applies changes to one node in a single transaction.
func (b *BadgerEngine) UpdateNodeProperties(id NodeID, changes PropertyChanges) (ChangeSummary, error) {
	var summary ChangeSummary
	var updated *Node
	err := b.withUpdate(func(txn *badger.Txn) error {
		node, err := readNode(txn, id)
		if err != nil {
			return err
		}
		summary = applyChanges(node.Properties, changes)
		node.UpdatedAt = time.Now()

		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		if err := txn.Set(nodeKey(id), data); err != nil {
			return err
		}
		updated = node
		return nil
	})
	if err != nil {
		// The cached copy may be stale if the write failed half way
		b.nodeCache.Remove(id)
		return ChangeSummary{}, err
	}

	b.nodeCache.Add(id, CopyNode(updated))
	return summary, nil
}

// DeleteNode removes a node and every edge attached to it.
func (b *BadgerEngine) DeleteNode(id NodeID) error {
	var removedEdges []EdgeID
	err := b.withUpdate(func(txn *badger.Txn) error {
		if _, err := readNode(txn, id); err != nil {
			return err
		}

		attached := append(collectAdjacency(txn, prefixOutgoingIndex, id),
			collectAdjacency(txn, prefixIncomingIndex, id)...)
		seen := make(map[EdgeID]struct{}, len(attached))
		for _, edgeID := range attached {
			if _, dup := seen[edgeID]; dup {
				continue
			}
			seen[edgeID] = struct{}{}
			if err := b.deleteEdgeInTxn(txn, edgeID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			removedEdges = append(removedEdges, edgeID)
		}

		if err := txn.Delete(nodeKey(id)); err != nil {
			return err
		}
		b.nodeIDs.release(uint64(id))
		if err := saveAllocator(txn, metaNodeIDs, b.nodeIDs); err != nil {
			return err
		}
		return saveAllocator(txn, metaEdgeIDs, b.edgeIDs)
	})
	if err != nil {
		return err
	}

	b.nodeCache.Remove(id)
	for _, edgeID := range removedEdges {
		b.edgeCache.Remove(edgeID)
	}
	return nil
}
