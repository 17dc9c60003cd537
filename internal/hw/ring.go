package hw

import "sync"

// Ring is a fixed-capacity byte queue safe for one reader and one writer on
// different goroutines. Writes never grow the buffer: bytes beyond the free
// space are refused, which is how every endpoint bounds its budget.
type Ring struct {
	mu  sync.Mutex
	buf []byte
	r   int // next read index
	w   int // next write index
	n   int // bytes stored
}

// NewRing creates a ring holding up to capacity bytes.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]byte, capacity)}
}

// Cap returns the fixed capacity.
func (q *Ring) Cap() int {
	return len(q.buf)
}

// Len returns the number of stored bytes.
func (q *Ring) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Free returns the number of bytes a Write would currently accept.
func (q *Ring) Free() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) - q.n
}

// Write stores up to Free() bytes from p and returns how many were taken.
func (q *Ring) Write(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	free := len(q.buf) - q.n
	if len(p) > free {
		p = p[:free]
	}
	for _, b := range p {
		q.buf[q.w] = b
		q.w = (q.w + 1) % len(q.buf)
	}
	q.n += len(p)
	return len(p)
}

// Read removes up to len(p) bytes into p and returns how many were moved.
func (q *Ring) Read(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(p) > q.n {
		p = p[:q.n]
	}
	for i := range p {
		p[i] = q.buf[q.r]
		q.r = (q.r + 1) % len(q.buf)
	}
	q.n -= len(p)
	return len(p)
}

// Reset discards all stored bytes.
func (q *Ring) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.r, q.w, q.n = 0, 0, 0
}
