package storage

import (
	"log"

	"github.com/dgraph-io/badger/v4"
)

func (b *BadgerEngine) ensureOpen() error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrStorageClosed
	}
	return nil
}

func (b *BadgerEngine) withView(fn func(txn *badger.Txn) error) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.View(fn)
}

// withUpdate runs fn in a read-write transaction while holding the engine
// lock, so fn may touch the id allocators. Writers are serialized.
//
// A failed transaction leaves the allocators out of sync with what was
// committed, so they are reloaded from the database.
func (b *BadgerEngine) withUpdate(fn func(txn *badger.Txn) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrStorageClosed
	}
	err := b.db.Update(fn)
	if err != nil {
		if reloadErr := b.loadAllocators(); reloadErr != nil {
			log.Printf("[storage] failed to reload id allocators after aborted write: %v", reloadErr)
		}
	}
	return err
}
