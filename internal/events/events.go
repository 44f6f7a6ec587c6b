// Package events lets goroutines register for and receive narration
// strings, the same buffered per-subscriber channel fan-out the teacher
// uses to feed its websocket clients from the blockchain's EventHandler
// callback (foundation/events).
package events

import (
	"fmt"
	"sync"
)

// messageBuffer bounds how far behind a slow receiver can fall before new
// events to it are dropped instead of blocking the sender.
const messageBuffer = 100

// Events maintains a set of subscriber channels keyed by an opaque id.
type Events struct {
	mu sync.RWMutex
	m  map[string]chan string
}

// New constructs an empty event bus.
func New() *Events {
	return &Events{m: make(map[string]chan string)}
}

// Acquire returns the channel registered under id, creating it if this is
// the first call for that id.
func (e *Events) Acquire(id string) chan string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ch, ok := e.m[id]; ok {
		return ch
	}
	ch := make(chan string, messageBuffer)
	e.m[id] = ch
	return ch
}

// Release closes and removes the channel registered under id.
func (e *Events) Release(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, ok := e.m[id]
	if !ok {
		return fmt.Errorf("events: id %q does not exist", id)
	}
	delete(e.m, id)
	close(ch)
	return nil
}

// Send fans s out to every registered subscriber without blocking; a
// subscriber that isn't keeping up simply misses the message.
func (e *Events) Send(s string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.m {
		select {
		case ch <- s:
		default:
		}
	}
}

// Shutdown closes every registered channel.
func (e *Events) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, ch := range e.m {
		delete(e.m, id)
		close(ch)
	}
}
