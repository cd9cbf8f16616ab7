package vulkan

import "sync"

// arena hands out opaque uint64 handles for native object wrappers. Zero is
// never issued, so a zero handle always means nil.
type arena[T any] struct {
	mu    sync.Mutex
	next  uint64
	items map[uint64]*T
}

func newArena[T any]() arena[T] {
	return arena[T]{items: make(map[uint64]*T)}
}

func (a *arena[T]) insert(item *T) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.items[a.next] = item
	return a.next
}

func (a *arena[T]) get(id uint64) *T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.items[id]
}

func (a *arena[T]) remove(id uint64) *T {
	a.mu.Lock()
	defer a.mu.Unlock()
	item := a.items[id]
	delete(a.items, id)
	return item
}
