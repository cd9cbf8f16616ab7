package containers

import "testing"

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue[int](4)
	for i := 1; i <= 3; i++ {
		q.Push(i)
	}
	if got := q.Len(); got != 3 {
		t.Fatalf("Len\nhave %d\nwant 3", got)
	}
	for want := 1; want <= 3; want++ {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("Pop\nhave %d %t\nwant %d true", got, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on an empty queue must report false")
	}
}

func TestQueuePeekDoesNotRemove(t *testing.T) {
	q := NewQueue[string](2)
	if _, ok := q.Peek(); ok {
		t.Fatal("Peek on an empty queue must report false")
	}
	q.Push("a")
	q.Push("b")
	if got, ok := q.Peek(); !ok || got != "a" {
		t.Fatalf("Peek\nhave %q %t\nwant \"a\" true", got, ok)
	}
	if q.Len() != 2 {
		t.Fatal("Peek must not remove the front value")
	}
}

func TestQueueGrowsPastInitialCapacity(t *testing.T) {
	q := NewQueue[int](2)
	// Wrap the ring before growing so the copy path is exercised.
	q.Push(1)
	q.Push(2)
	q.Pop()
	q.Push(3)
	q.Push(4)
	q.Push(5)

	want := []int{2, 3, 4, 5}
	for _, w := range want {
		got, ok := q.Pop()
		if !ok || got != w {
			t.Fatalf("Pop after growth\nhave %d %t\nwant %d true", got, ok, w)
		}
	}
}

func TestQueueClear(t *testing.T) {
	q := NewQueue[int](2)
	q.Push(1)
	q.Push(2)
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("Len after Clear\nhave %d\nwant 0", q.Len())
	}
	q.Push(7)
	if got, ok := q.Pop(); !ok || got != 7 {
		t.Fatalf("Pop after Clear\nhave %d %t\nwant 7 true", got, ok)
	}
}
