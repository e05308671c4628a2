// Package queryinfo tracks per-query stage timings and keeps a bounded
// history of finished queries.
package queryinfo

// CircularBuffer is a fixed capacity FIFO queue.
// It is not safe for concurrent use.
type CircularBuffer[T any] struct {
	items []T
	head  int // index of the oldest item
	count int
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &CircularBuffer[T]{items: make([]T, capacity)}
}

// Add appends item. It returns false, leaving the buffer unchanged, when the
// buffer is full.
func (b *CircularBuffer[T]) Add(item T) bool {
	if b.Full() {
		return false
	}
	b.items[(b.head+b.count)%len(b.items)] = item
	b.count++
	return true
}

// Remove pops the oldest item.
func (b *CircularBuffer[T]) Remove() (T, bool) {
	var zero T
	if b.Empty() {
		return zero, false
	}
	item := b.items[b.head]
	b.items[b.head] = zero
	b.head = (b.head + 1) % len(b.items)
	b.count--
	return item, true
}

func (b *CircularBuffer[T]) Full() bool  { return b.count == len(b.items) }
func (b *CircularBuffer[T]) Empty() bool { return b.count == 0 }
func (b *CircularBuffer[T]) Len() int    { return b.count }
func (b *CircularBuffer[T]) Cap() int    { return len(b.items) }

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	out := make([]T, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}
