package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// idAllocator hands out dense entity ids.
//
// Deleted ids are kept in a bitmap and reused lowest-first, the same way a
// slotted data block reuses freed slots. next is the high-water mark and
// therefore the uncompacted entity count.
//
// idAllocator is not safe for concurrent use; engines guard it with their own
// lock.
type idAllocator struct {
	next  uint64
	holes *roaring64.Bitmap
}

func newIDAllocator() *idAllocator {
	return &idAllocator{holes: roaring64.New()}
}

// allocate returns the id for a new entity.
func (a *idAllocator) allocate() uint64 {
	if !a.holes.IsEmpty() {
		id := a.holes.Minimum()
		a.holes.Remove(id)
		return id
	}
	id := a.next
	a.next++
	return id
}

// release marks id as a hole.
func (a *idAllocator) release(id uint64) {
	if id < a.next {
		a.holes.Add(id)
	}
}

// isHole reports whether id was handed out and later released.
func (a *idAllocator) isHole(id uint64) bool {
	return a.holes.Contains(id)
}

// uncompacted is the number of ids ever handed out, holes included.
func (a *idAllocator) uncompacted() uint64 {
	return a.next
}

// live is the number of ids currently in use.
func (a *idAllocator) live() uint64 {
	return a.next - a.holes.GetCardinality()
}

// marshal encodes the allocator as next (8 bytes, big endian) followed by
// the serialized hole bitmap.
func (a *idAllocator) marshal() ([]byte, error) {
	holes, err := a.holes.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode id holes: %w", err)
	}
	buf := make([]byte, 8, 8+len(holes))
	binary.BigEndian.PutUint64(buf, a.next)
	return append(buf, holes...), nil
}

func (a *idAllocator) unmarshal(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("%w: id allocator state too short (%d bytes)", ErrInvalidData, len(data))
	}
	holes := roaring64.New()
	if len(data) > 8 {
		if err := holes.UnmarshalBinary(data[8:]); err != nil {
			return fmt.Errorf("failed to decode id holes: %w", err)
		}
	}
	a.next = binary.BigEndian.Uint64(data[:8])
	a.holes = holes
	return nil
}

