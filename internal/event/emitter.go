// Package event provides a synchronous in-process observer primitive.
package event

import "sync"

type listener[T any] struct {
	id int
	fn func(T)
}

// Emitter fans out values to subscribed listeners.
//
// Fire delivers synchronously on the calling goroutine, in registration order.
// Listeners run outside the emitter lock, so they may subscribe, unsubscribe or
// fire again without deadlocking.
type Emitter[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners []listener[T]
	disposed  bool
}

// Subscribe registers fn and returns a function that removes it.
// Subscribing to a disposed emitter is a no-op.
func (e *Emitter[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return func() {}
	}

	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter[T]) remove(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Fire calls every listener registered at the moment of the call.
func (e *Emitter[T]) Fire(v T) {
	e.mu.Lock()
	if e.disposed || len(e.listeners) == 0 {
		e.mu.Unlock()
		return
	}
	snapshot := make([]listener[T], len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(v)
	}
}

// Len returns the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Dispose drops all listeners; later Fire and Subscribe calls do nothing.
func (e *Emitter[T]) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposed = true
	e.listeners = nil
}

// Signal is an emitter for notifications without a payload.
type Signal struct {
	Emitter[struct{}]
}

// On registers fn and returns its unsubscribe function.
func (s *Signal) On(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	return s.Subscribe(func(struct{}) { fn() })
}

// Notify fires the signal.
func (s *Signal) Notify() {
	s.Fire(struct{}{})
}
