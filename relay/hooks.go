package relay

import "sync"

// Hook is a list of handlers for one host event. Handlers run synchronously
// on the dispatching goroutine, in registration order.
type Hook[T any] struct {
	mu       sync.RWMutex
	nextID   int
	handlers []hookEntry[T]
}

type hookEntry[T any] struct {
	id int
	fn func(T)
}

// Register adds fn and returns a func that removes it again. The returned
// func is safe to call more than once.
func (h *Hook[T]) Register(fn func(T)) (deregister func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.handlers = append(h.handlers, hookEntry[T]{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *Hook[T]) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, e := range h.handlers {
		if e.id == id {
			h.handlers = append(h.handlers[:i:i], h.handlers[i+1:]...)
			return
		}
	}
}

// Dispatch calls every registered handler with args.
func (h *Hook[T]) Dispatch(args T) {
	h.mu.RLock()
	handlers := make([]hookEntry[T], len(h.handlers))
	copy(handlers, h.handlers)
	h.mu.RUnlock()

	for _, e := range handlers {
		e.fn(args)
	}
}

// Len reports the number of registered handlers.
func (h *Hook[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}

// HostHooks is the set of event hooks a host exposes to the relay.
type HostHooks struct {
	Join    Hook[JoinArgs]
	Leave   Hook[LeaveArgs]
	Chat    Hook[ChatArgs]
	GetData Hook[GetDataArgs]
}
