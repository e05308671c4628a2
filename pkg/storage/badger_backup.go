// Package storage provides storage engine implementations for NornicDB.
package storage

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/klauspost/compress/zstd"
)

// maxPendingRestoreWrites bounds badger's in-flight batch during Restore.
const maxPendingRestoreWrites = 256

// Backup streams a zstd-compressed full snapshot of the database to w.
// Uses BadgerDB's streaming backup which creates a consistent snapshot.
func (b *BadgerEngine) Backup(w io.Writer) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrStorageClosed
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create backup encoder: %w", err)
	}

	// Stream backup (since=0 means full backup)
	if _, err := b.db.Backup(enc, 0); err != nil {
		enc.Close()
		return fmt.Errorf("backup failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush backup: %w", err)
	}
	return nil
}

// BackupToFile writes a compressed backup to path and syncs it to disk.
func (b *BadgerEngine) BackupToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriterSize(f, 1024*1024)
	if err := b.Backup(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush backup: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync backup: %w", err)
	}

	log.Printf("[storage] backup written to %s", path)
	return nil
}

// Restore loads a backup produced by Backup into the database.
// Id allocators are reloaded and caches dropped, since the restored
// snapshot replaces them.
func (b *BadgerEngine) Restore(r io.Reader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrStorageClosed
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer dec.Close()

	if err := b.db.Load(dec, maxPendingRestoreWrites); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	b.nodeCache.Purge()
	b.edgeCache.Purge()
	return b.loadAllocators()
}

// RestoreFromFile restores a backup file written by BackupToFile.
func (b *BadgerEngine) RestoreFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	if err := b.Restore(bufio.NewReader(f)); err != nil {
		return err
	}
	log.Printf("[storage] restored backup from %s", path)
	return nil
}
