// Package observable provides a current-value holder that replays its
// latest value to new subscribers.
//
// Subscribers are called synchronously, in emission order, from the
// goroutine that sets the value. A subscriber must not call back into the
// component that owns the value; hand work off to a channel or goroutine
// instead. Owners detach every subscriber with Close on teardown.
package observable

import "sync"

// Value holds the latest value of T and broadcasts changes
type Value[T any] struct {
	mu     sync.Mutex
	emitMu sync.Mutex
	value  T
	subs   map[uint64]func(T)
	nextID uint64
	closed bool
	equal  func(a, b T) bool
}

// New creates a Value seeded with initial
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		value: initial,
		subs:  make(map[uint64]func(T)),
	}
}

// NewComparable creates a Value whose Update skips emissions of equal values
func NewComparable[T comparable](initial T) *Value[T] {
	v := New(initial)
	v.equal = func(a, b T) bool { return a == b }
	return v
}

// Get returns the current value
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Set stores val and notifies every subscriber
func (v *Value[T]) Set(val T) {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()

	v.mu.Lock()
	v.value = val
	subs := v.snapshot()
	v.mu.Unlock()

	for _, fn := range subs {
		fn(val)
	}
}

// Update stores val and notifies only if it differs from the current value.
// Returns true when an emission happened.
func (v *Value[T]) Update(val T) bool {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()

	v.mu.Lock()
	if v.equal != nil && v.equal(v.value, val) {
		v.mu.Unlock()
		return false
	}
	v.value = val
	subs := v.snapshot()
	v.mu.Unlock()

	for _, fn := range subs {
		fn(val)
	}
	return true
}

// Subscribe registers fn, calls it with the current value and returns a
// function that detaches it
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return func() {}
	}
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	current := v.value
	v.mu.Unlock()

	fn(current)

	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}

// Subscribers returns the number of attached subscribers
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// Close detaches all subscribers; later values are stored but not broadcast
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.subs = make(map[uint64]func(T))
}

// snapshot copies subscribers in registration order; caller holds v.mu
func (v *Value[T]) snapshot() []func(T) {
	if len(v.subs) == 0 {
		return nil
	}
	out := make([]func(T), 0, len(v.subs))
	for id := uint64(0); id < v.nextID; id++ {
		if fn, ok := v.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
