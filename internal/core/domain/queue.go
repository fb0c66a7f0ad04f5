// Package domain defines the core domain models for pathnet.
package domain

import (
	"strconv"
	"strings"
)

const minQueueCapacity = 16

// ByteQueue is an unbounded FIFO of bytes backed by a ring buffer.
//
// The zero value is an empty queue ready for use. A ByteQueue owns its
// storage: copying the struct value aliases the ring, so use Clone to obtain
// an independent queue.
type ByteQueue struct {
	buf  []byte
	head int
	n    int
}

// Len returns the number of buffered bytes.
func (q *ByteQueue) Len() int {
	return q.n
}

// IsEmpty reports whether the queue holds no bytes.
func (q *ByteQueue) IsEmpty() bool {
	return q.n == 0
}

// Push appends b at the tail.
func (q *ByteQueue) Push(b byte) {
	if q.n == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.n)%len(q.buf)] = b
	q.n++
}

// PushAll appends every byte of p in order.
func (q *ByteQueue) PushAll(p []byte) {
	for _, b := range p {
		q.Push(b)
	}
}

// Pop removes and returns the byte at the head.
// The second result is false when the queue is empty.
func (q *ByteQueue) Pop() (byte, bool) {
	if q.n == 0 {
		return 0, false
	}
	b := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	if q.n == 0 {
		q.head = 0
	}
	return b, true
}

// Bytes returns the buffered bytes, head first, in a fresh slice.
func (q *ByteQueue) Bytes() []byte {
	out := make([]byte, q.n)
	for i := 0; i < q.n; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// Clone returns a queue with the same contents and its own storage.
func (q *ByteQueue) Clone() ByteQueue {
	if q.n == 0 {
		return ByteQueue{}
	}
	return ByteQueue{buf: q.Bytes(), n: q.n}
}

// Equal reports whether both queues hold the same bytes in the same order.
func (q *ByteQueue) Equal(other *ByteQueue) bool {
	if q.n != other.n {
		return false
	}
	for i := 0; i < q.n; i++ {
		if q.buf[(q.head+i)%len(q.buf)] != other.buf[(other.head+i)%len(other.buf)] {
			return false
		}
	}
	return true
}

// String renders the queue as "[1, 2, 3]".
func (q *ByteQueue) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < q.n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(q.buf[(q.head+i)%len(q.buf)])))
	}
	sb.WriteByte(']')
	return sb.String()
}

// grow doubles the ring, unwrapping it so the head lands at index 0.
func (q *ByteQueue) grow() {
	size := len(q.buf) * 2
	if size < minQueueCapacity {
		size = minQueueCapacity
	}
	next := make([]byte, size)
	for i := 0; i < q.n; i++ {
		next[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = next
	q.head = 0
}
