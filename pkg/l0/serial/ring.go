package serial

import "sync/atomic"

// ring is a fixed-capacity circular byte buffer with one producer and
// one consumer. The producer only writes head, the consumer only writes
// tail. One slot is always left open so head == tail means empty.
type ring struct {
	buf  []byte
	head atomic.Uint32
	tail atomic.Uint32
}

func (r *ring) init(size int) {
	r.buf = make([]byte, size)
	r.head.Store(0)
	r.tail.Store(0)
}

func (r *ring) next(i uint32) uint32 {
	i++
	if i == uint32(len(r.buf)) {
		i = 0
	}
	return i
}

// put appends b on the producer side. It returns false if full.
func (r *ring) put(b byte) bool {
	head := r.head.Load()
	next := r.next(head)
	if next == r.tail.Load() {
		return false
	}
	r.buf[head] = b
	r.head.Store(next)
	return true
}

// get removes one byte on the consumer side.
func (r *ring) get() (byte, bool) {
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return 0, false
	}
	b := r.buf[tail]
	r.tail.Store(r.next(tail))
	return b, true
}

// discard drops everything buffered. Consumer side only.
func (r *ring) discard() {
	r.tail.Store(r.head.Load())
}

func (r *ring) empty() bool {
	return r.head.Load() == r.tail.Load()
}

func (r *ring) count() int {
	head, tail := int(r.head.Load()), int(r.tail.Load())
	if head >= tail {
		return head - tail
	}
	return len(r.buf) - (tail - head)
}

// capacity is the maximum number of bytes the ring holds.
func (r *ring) capacity() int {
	return len(r.buf) - 1
}
