// Package ring provides a fixed-capacity circular byte buffer.
//
// A Buffer does not own its memory; it only manages the contents of a
// backing slice handed to New. Everything between head and tail is valid
// data (possibly wrapping around). head == tail means empty, which is why
// one cell is always left unused: the buffer holds at most Capacity()-1
// bytes.
package ring

import "fmt"

// Buffer is a circular byte buffer over borrowed storage. It is not safe
// for concurrent use; callers are expected to guard it with their own lock.
type Buffer struct {
	// head is the next index to be read, tail the next index to be
	// written. Both are always < capacity.
	head, tail int

	data []byte
}

// New returns a Buffer managing the given storage. The caller keeps
// ownership of the slice and must not touch it while the buffer is in use.
func New(storage []byte) *Buffer {
	if len(storage) < 2 {
		panic("ring: storage must hold at least two bytes")
	}
	return &Buffer{data: storage}
}

func (b *Buffer) next(i int) int {
	if i+1 == len(b.data) {
		return 0
	}
	return i + 1
}

// Clear discards all buffered data.
func (b *Buffer) Clear() {
	b.head = 0
	b.tail = 0
}

// Capacity returns the size of the backing storage. The buffer can hold at
// most Capacity()-1 bytes.
func (b *Buffer) Capacity() int {
	return len(b.data)
}

// Empty reports whether no data is buffered.
func (b *Buffer) Empty() bool {
	return b.head == b.tail
}

// Full reports whether no more data can be appended.
func (b *Buffer) Full() bool {
	return b.next(b.tail) == b.head
}

// Size returns the number of buffered bytes.
func (b *Buffer) Size() int {
	if b.head <= b.tail {
		return b.tail - b.head
	}
	return len(b.data) - b.head + b.tail
}

// Space returns the number of bytes that can still be appended.
// Size() + Space() == Capacity() - 1 holds at all times.
func (b *Buffer) Space() int {
	if b.head <= b.tail {
		return len(b.data) - b.tail + b.head - 1
	}
	return b.head - b.tail - 1
}

// Write returns the next contiguous writable window. It may be shorter than
// Space() when the free region wraps past the physical end of the storage.
// Call Append after filling (a prefix of) the window.
func (b *Buffer) Write() []byte {
	b.check()

	var end int
	if b.tail < b.head {
		end = b.head - 1
	} else if b.head == 0 {
		// Stop one short of the physical end: tail may never catch
		// up with head, that state is indistinguishable from empty.
		end = len(b.data) - 1
	} else {
		end = len(b.data)
	}

	return b.data[b.tail:end]
}

// Append commits n bytes previously written into the window returned by
// Write, advancing tail.
func (b *Buffer) Append(n int) {
	b.check()
	if n > len(b.Write()) {
		panic(fmt.Sprintf("ring: Append(%d) exceeds writable window %d", n, len(b.Write())))
	}

	b.tail += n
	if b.tail == len(b.data) {
		if b.head == 0 {
			panic("ring: Append made tail collide with head")
		}
		b.tail = 0
	}
}

// Read returns the next contiguous readable window. It may be shorter than
// Size() when the buffered data wraps. Call Consume after processing (a
// prefix of) the window.
func (b *Buffer) Read() []byte {
	b.check()

	end := b.tail
	if b.tail < b.head {
		end = len(b.data)
	}
	return b.data[b.head:end]
}

// Consume marks n bytes of the window returned by Read as read, advancing
// head.
func (b *Buffer) Consume(n int) {
	b.check()
	if n > len(b.Read()) {
		panic(fmt.Sprintf("ring: Consume(%d) exceeds readable window %d", n, len(b.Read())))
	}

	b.head += n
	if b.head == len(b.data) {
		b.head = 0
	}
}

// check fails fast on index corruption. This is a correctness-critical
// primitive; silent corruption here would surface as garbled stream data
// far away from the bug.
func (b *Buffer) check() {
	if b.head >= len(b.data) || b.tail >= len(b.data) {
		panic(fmt.Sprintf("ring: corrupt indices head=%d tail=%d capacity=%d",
			b.head, b.tail, len(b.data)))
	}
}
