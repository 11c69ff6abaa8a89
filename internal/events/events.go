// Package events provides the typed publish/subscribe primitive that
// decouples the connection lifecycle from its consumers (gateway sockets,
// registry refresh). Subscribers are plain callbacks registered explicitly;
// a panicking subscriber never prevents the remaining subscribers from
// running.
package events

import (
	"log/slog"
	"sync"
)

// Emitter fans a value out to every subscribed callback.
// Emit runs subscribers synchronously in registration order.
type Emitter[T any] struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewEmitter returns an empty Emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// Subscribe registers fn and returns an unsubscribe func.
// Unsubscribing twice is a no-op.
func (e *Emitter[T]) Subscribe(fn func(T)) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscriber[T]{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers v to every subscriber. Each callback runs inside its own
// recover so one misbehaving subscriber cannot starve the rest.
func (e *Emitter[T]) Emit(v T) {
	e.mu.RLock()
	subs := make([]subscriber[T], len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	for _, s := range subs {
		deliver(s.fn, v)
	}
}

func deliver[T any](fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked", "panic", r)
		}
	}()
	fn(v)
}
