// Package storage provides storage engine implementations for NornicDB.
//
// BadgerEngine provides persistent disk-based storage using BadgerDB.
// It implements the Engine interface with transactional mutations.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Key prefixes for BadgerDB storage organization
// Using single-byte prefixes for efficiency
const (
	prefixNode          = byte(0x01) // nodes:nodeID -> Node
	prefixEdge          = byte(0x02) // edges:edgeID -> Edge
	prefixOutgoingIndex = byte(0x04) // outgoing:nodeID:edgeID -> []byte{}
	prefixIncomingIndex = byte(0x05) // incoming:nodeID:edgeID -> []byte{}
	prefixMeta          = byte(0x10) // meta:name -> engine state
)

var (
	metaNodeIDs = metaKey("node_ids")
	metaEdgeIDs = metaKey("edge_ids")
)

// DefaultNodeCacheSize is the number of hot nodes and edges kept decoded.
const DefaultNodeCacheSize = 10000

// BadgerEngine provides persistent storage using BadgerDB.
//
// Key Structure:
//   - Nodes: 0x01 + uint64(nodeID) -> gob(Node)
//   - Edges: 0x02 + uint64(edgeID) -> gob(Edge)
//   - Outgoing Index: 0x04 + uint64(nodeID) + uint64(edgeID) -> empty
//   - Incoming Index: 0x05 + uint64(nodeID) + uint64(edgeID) -> empty
//   - Id allocators: 0x10 + name -> high-water mark + hole bitmap
//
// Ids are big-endian so a prefix iteration visits entities in id order.
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	id, err := engine.CreateNode(&storage.Node{
//		Labels:     []string{"User"},
//		Properties: map[string]any{"name": "Alice"},
//	})
type BadgerEngine struct {
	db       *badger.DB
	mu       sync.RWMutex // Protects closed and the id allocators
	closed   bool
	inMemory bool

	nodeIDs *idAllocator
	edgeIDs *idAllocator

	// Hot entity caches; values are private deep copies
	nodeCache *lru.Cache[NodeID, *Node]
	edgeCache *lru.Cache[EdgeID, *Edge]
}

// BadgerOptions configures the BadgerDB storage engine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	DataDir string

	// InMemory runs BadgerDB without touching disk. Intended for tests.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// NodeCacheSize bounds the hot node and edge caches.
	// 0 selects DefaultNodeCacheSize.
	NodeCacheSize int

	// Logger receives BadgerDB's internal logging. nil silences it.
	Logger badger.Logger
}

// NewBadgerEngine creates a new persistent storage engine with default settings.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		DataDir: dataDir,
	})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom configuration.
//
// Example - In-Memory Database for Testing:
//
//	engine, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
//		InMemory: true,
//	})
//	defer engine.Close()
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	// A nil logger keeps badger quiet
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	cacheSize := opts.NodeCacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultNodeCacheSize
	}
	nodeCache, err := lru.New[NodeID, *Node](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create node cache: %w", err)
	}
	edgeCache, err := lru.New[EdgeID, *Edge](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create edge cache: %w", err)
	}

	b := &BadgerEngine{
		db:        db,
		inMemory:  opts.InMemory,
		nodeCache: nodeCache,
		edgeCache: edgeCache,
	}

	if err := b.loadAllocators(); err != nil {
		db.Close()
		return nil, err
	}

	if !opts.InMemory {
		log.Printf("[storage] badger engine opened dir=%s nodes=%d edges=%d",
			opts.DataDir, b.nodeIDs.live(), b.edgeIDs.live())
	}
	return b, nil
}

// IsInMemory returns true if the engine is running in memory-only mode.
func (b *BadgerEngine) IsInMemory() bool {
	return b.inMemory
}

// loadAllocators replaces the id allocators with the persisted state.
func (b *BadgerEngine) loadAllocators() error {
	b.nodeIDs = newIDAllocator()
	b.edgeIDs = newIDAllocator()
	return b.db.View(func(txn *badger.Txn) error {
		for _, m := range []struct {
			key   []byte
			alloc *idAllocator
		}{
			{metaNodeIDs, b.nodeIDs},
			{metaEdgeIDs, b.edgeIDs},
		} {
			item, err := txn.Get(m.key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(m.alloc.unmarshal); err != nil {
				return fmt.Errorf("failed to load %s: %w", m.key[1:], err)
			}
		}
		return nil
	})
}

// saveAllocator writes the allocator state inside txn.
func saveAllocator(txn *badger.Txn, key []byte, alloc *idAllocator) error {
	data, err := alloc.marshal()
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// Close closes the database.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.nodeCache.Purge()
	b.edgeCache.Purge()
	return b.db.Close()
}

// UncompactedNodeCount returns the node id high-water mark.
func (b *BadgerEngine) UncompactedNodeCount() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nodeIDs.uncompacted()
}

// UncompactedEdgeCount returns the edge id high-water mark.
func (b *BadgerEngine) UncompactedEdgeCount() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.edgeIDs.uncompacted()
}

// NodeCount returns the number of live nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrStorageClosed
	}
	return int64(b.nodeIDs.live()), nil
}

// EdgeCount returns the number of live edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrStorageClosed
	}
	return int64(b.edgeIDs.live()), nil
}

// Key encoding
// ============================================================================

func idKey(prefix byte, id uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], id)
	return key
}

// nodeKey creates a key for storing a node.
func nodeKey(id NodeID) []byte {
	return idKey(prefixNode, uint64(id))
}

// edgeKey creates a key for storing an edge.
func edgeKey(id EdgeID) []byte {
	return idKey(prefixEdge, uint64(id))
}

// adjacencyKey creates an outgoing or incoming index key.
// Format: prefix + nodeID + edgeID
func adjacencyKey(prefix byte, nodeID NodeID, edgeID EdgeID) []byte {
	key := make([]byte, 17)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:9], uint64(nodeID))
	binary.BigEndian.PutUint64(key[9:], uint64(edgeID))
	return key
}

// adjacencyPrefix returns the prefix for scanning one node's edges.
func adjacencyPrefix(prefix byte, nodeID NodeID) []byte {
	return idKey(prefix, uint64(nodeID))
}

// edgeIDFromAdjacencyKey extracts the edge id from an adjacency key.
func edgeIDFromAdjacencyKey(key []byte) EdgeID {
	return EdgeID(binary.BigEndian.Uint64(key[9:17]))
}

func metaKey(name string) []byte {
	return append([]byte{prefixMeta}, name...)
}

// Serialization
// ============================================================================

// encodeNode serializes a Node using gob (preserves Go types).
func encodeNode(n *Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeNode deserializes a Node from gob.
func decodeNode(data []byte) (*Node, error) {
	var node Node
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&node); err != nil {
		return nil, err
	}
	if node.Properties == nil {
		node.Properties = make(map[string]any)
	}
	return &node, nil
}

// encodeEdge serializes an Edge using gob (preserves Go types).
func encodeEdge(e *Edge) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeEdge deserializes an Edge from gob.
func decodeEdge(data []byte) (*Edge, error) {
	var edge Edge
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&edge); err != nil {
		return nil, err
	}
	if edge.Properties == nil {
		edge.Properties = make(map[string]any)
	}
	return &edge, nil
}

// Verify BadgerEngine implements Engine interface
var _ Engine = (*BadgerEngine)(nil)
