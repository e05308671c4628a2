package storage

import "github.com/dgraph-io/badger/v4"

func badgerIterOptsKeyOnly(prefix []byte) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	return opts
}

// collectAdjacency returns the edge ids indexed under one node.
func collectAdjacency(txn *badger.Txn, prefix byte, nodeID NodeID) []EdgeID {
	it := txn.NewIterator(badgerIterOptsKeyOnly(adjacencyPrefix(prefix, nodeID)))
	defer it.Close()

	var ids []EdgeID
	for it.Rewind(); it.Valid(); it.Next() {
		ids = append(ids, edgeIDFromAdjacencyKey(it.Item().Key()))
	}
	return ids
}
