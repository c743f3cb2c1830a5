// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package queue

import "sync"

// minCapacity must be a power of 2 so that x % n == x & (n - 1).
const minCapacity = 16

// Unbounded is a thread-safe FIFO backed by a growable ring buffer.
// Consumers block on Wait until an item is pushed or the queue is closed.
type Unbounded[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	nodes  []T
	head   int
	tail   int
	count  int
	closed bool
}

// NewUnbounded creates an instance of Unbounded
func NewUnbounded[T any]() *Unbounded[T] {
	q := &Unbounded[T]{
		nodes: make([]T, minCapacity),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds an item to the back of the queue.
// It returns false and drops the item when the queue is closed.
func (q *Unbounded[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}

	if q.count == len(q.nodes) {
		q.resize(q.count << 1)
	}

	q.nodes[q.tail] = item
	q.tail = (q.tail + 1) & (len(q.nodes) - 1)
	q.count++
	q.cond.Signal()
	return true
}

// Pop removes the item at the front of the queue without blocking.
// false means the queue is empty or closed.
func (q *Unbounded[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pop()
}

// Wait blocks until an item is available and removes it.
// It returns false once the queue is closed.
func (q *Unbounded[T]) Wait() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	return q.pop()
}

// Close discards the pending items and wakes up every waiting consumer.
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.count = 0
	q.nodes = nil
	q.cond.Broadcast()
}

// IsClosed returns true if the queue has been closed
func (q *Unbounded[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the current length of the queue.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Unbounded[T]) pop() (T, bool) {
	var zero T
	if q.closed || q.count == 0 {
		return zero, false
	}

	item := q.nodes[q.head]
	q.nodes[q.head] = zero
	q.head = (q.head + 1) & (len(q.nodes) - 1)
	q.count--

	// shrink when the buffer is a quarter full
	if len(q.nodes) > minCapacity && (q.count<<2) == len(q.nodes) {
		q.resize(q.count << 1)
	}
	return item, true
}

func (q *Unbounded[T]) resize(capacity int) {
	nodes := make([]T, capacity)
	if q.tail > q.head {
		copy(nodes, q.nodes[q.head:q.tail])
	} else {
		n := copy(nodes, q.nodes[q.head:])
		copy(nodes[n:], q.nodes[:q.tail])
	}

	q.tail = q.count
	q.head = 0
	q.nodes = nodes
}
