// Package containers holds small generic data structures shared across
// the engine.
package containers

// Queue is a growable FIFO backed by a ring buffer. The zero value is not
// usable; create one with NewQueue.
type Queue[T any] struct {
	data  []T
	read  int
	write int
	count int
}

// NewQueue creates a queue with the given initial capacity. The queue grows
// as needed, so capacity is only a starting size.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{data: make([]T, capacity)}
}

// Push appends a value at the back of the queue.
func (q *Queue[T]) Push(value T) {
	if q.count == len(q.data) {
		q.grow()
	}
	q.data[q.write] = value
	q.write = (q.write + 1) % len(q.data)
	q.count++
}

// Pop removes and returns the front value. The second return is false when
// the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	value := q.data[q.read]
	q.data[q.read] = zero
	q.read = (q.read + 1) % len(q.data)
	q.count--
	return value, true
}

// Peek returns the front value without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	return q.data[q.read], true
}

// Len reports the number of queued values.
func (q *Queue[T]) Len() int {
	return q.count
}

// Clear drops all queued values.
func (q *Queue[T]) Clear() {
	var zero T
	for i := range q.data {
		q.data[i] = zero
	}
	q.read = 0
	q.write = 0
	q.count = 0
}

func (q *Queue[T]) grow() {
	next := make([]T, len(q.data)*2)
	for i := 0; i < q.count; i++ {
		next[i] = q.data[(q.read+i)%len(q.data)]
	}
	q.data = next
	q.read = 0
	q.write = q.count
}
