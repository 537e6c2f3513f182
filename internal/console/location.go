// Package console holds the navigation state and route guarding of the operator console.
package console

import (
	"context"
	"sync"

	"github.com/target/mmk-console/internal/ports"
)

var _ ports.Navigator = (*Location)(nil)

// Location is the console's current path. It implements ports.Navigator;
// HTTP handlers and watchers observe it to follow navigations.
type Location struct {
	mu        sync.Mutex
	path      string
	observers map[uint64]func(string)
	nextID    uint64
}

// NewLocation starts at initial.
func NewLocation(initial string) *Location {
	return &Location{path: initial, observers: make(map[uint64]func(string))}
}

// Navigate moves to path and notifies observers.
func (l *Location) Navigate(_ context.Context, path string) {
	l.mu.Lock()
	l.path = path
	fns := make([]func(string), 0, len(l.observers))
	for _, fn := range l.observers {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(path)
	}
}

// Path returns the current path.
func (l *Location) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Observe registers fn for future navigations and returns a function that removes it.
func (l *Location) Observe(fn func(path string)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.observers[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.observers, id)
		l.mu.Unlock()
	}
}
