// Package state provides an observable value shared between the TUI and
// background commands.
package state

import (
	"sort"
	"sync"
)

// Container holds a value of type T and notifies subscribers after every
// change. Subscribers run on the goroutine that made the change, outside
// the value lock, in subscription order. Changes are delivered one at a
// time in the order they were made, so subscribers may call Get but must
// not change the container.
type Container[T any] struct {
	// deliver serializes change-and-notify; mu guards the fields below.
	deliver sync.Mutex

	mu     sync.RWMutex
	value  T
	subs   map[int]func(T)
	nextID int
}

// New returns a Container holding initial.
func New[T any](initial T) *Container[T] {
	return &Container[T]{value: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (c *Container[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the value unconditionally.
func (c *Container[T]) Set(v T) {
	c.Update(func(T) (T, bool) { return v, true })
}

// Update applies fn to the current value. When fn reports no change the
// value is kept and no subscriber runs. Update reports whether it changed.
func (c *Container[T]) Update(fn func(cur T) (next T, changed bool)) bool {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	next, changed := fn(c.value)
	if !changed {
		c.mu.Unlock()
		return false
	}
	c.value = next
	subs := c.snapshot()
	c.mu.Unlock()

	for _, sub := range subs {
		sub(next)
	}
	return true
}

// Subscribe registers fn to run after every change and returns a function
// that removes it.
func (c *Container[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// snapshot returns the subscribers ordered by registration. Callers hold mu.
func (c *Container[T]) snapshot() []func(T) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	subs := make([]func(T), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.subs[id])
	}
	return subs
}
