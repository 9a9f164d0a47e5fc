package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted during tick N are
// delivered during tick N+1, in emission order. Emit and dispatch belong to
// the game loop; handlers are registered during startup wiring.
type Bus struct {
	mu       sync.Mutex // guards handlers
	front    []queued
	back     []queued
	handlers map[reflect.Type][]func(any)
}

type queued struct {
	t  reflect.Type
	ev any
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]func(any))}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event for the next dispatch.
func Emit[T any](b *Bus, ev T) {
	b.back = append(b.back, queued{t: typeOf[T](), ev: ev})
}

// Subscribe registers a handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := typeOf[T]()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers makes the events emitted since the last swap dispatchable.
func (b *Bus) SwapBuffers() {
	clear(b.front)
	b.front, b.back = b.back, b.front[:0]
}

// DispatchAll delivers the front buffer and returns the number of events.
func (b *Bus) DispatchAll() int {
	for _, q := range b.front {
		for _, h := range b.handlers[q.t] {
			h(q.ev)
		}
	}
	return len(b.front)
}

// Pending reports events waiting for the next swap.
func (b *Bus) Pending() int {
	return len(b.back)
}
