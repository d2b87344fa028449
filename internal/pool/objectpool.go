// Package pool recycles objects owned by a single goroutine.
package pool

// ObjectPool is a non-synchronized analogue of sync.Pool with a bounded number of idle
// objects. Concurrent access isn't allowed.
type ObjectPool[T any] struct {
	idle []T
	new  func() T
}

// NewObjectPool returns a pool keeping at most maxIdle objects. Acquire falls back to
// newFn when the pool is empty.
func NewObjectPool[T any](maxIdle int, newFn func() T) *ObjectPool[T] {
	return &ObjectPool[T]{
		idle: make([]T, 0, maxIdle),
		new:  newFn,
	}
}

func (o *ObjectPool[T]) Acquire() T {
	if len(o.idle) == 0 {
		return o.new()
	}

	obj := o.idle[len(o.idle)-1]
	o.idle = o.idle[:len(o.idle)-1]

	return obj
}

// Release returns the object to the pool. It's dropped if the pool is full.
func (o *ObjectPool[T]) Release(obj T) {
	if len(o.idle) < cap(o.idle) {
		o.idle = append(o.idle, obj)
	}
}

// Idle returns the number of objects ready to be acquired.
func (o *ObjectPool[T]) Idle() int {
	return len(o.idle)
}
