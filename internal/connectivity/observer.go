// Package connectivity reports whether the remote can be reached.
package connectivity

import (
	"context"
	"sync"
)

// State is a connectivity snapshot.
type State struct {
	IsOnline            bool   `json:"isOnline"`
	Type                string `json:"type"`
	IsInternetReachable bool   `json:"isInternetReachable"`
}

// Online reports whether a sync can be attempted.
func (s State) Online() bool {
	return s.IsOnline && s.IsInternetReachable
}

// Offline is the state used before anything is known.
var Offline = State{Type: "none"}

// Observer delivers connectivity on demand and on change.
type Observer interface {
	Current(ctx context.Context) State
	// Subscribe registers fn for state changes and returns a function that
	// removes it.
	Subscribe(fn func(State)) func()
}

// broadcaster keeps the latest state and fans changes out to listeners.
type broadcaster struct {
	mu        sync.Mutex
	state     State
	nextID    int
	listeners map[int]func(State)
}

func newBroadcaster(initial State) *broadcaster {
	return &broadcaster{state: initial, listeners: make(map[int]func(State))}
}

func (b *broadcaster) current() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *broadcaster) Subscribe(fn func(State)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// set stores s and notifies listeners if it differs from the previous state.
func (b *broadcaster) set(s State) bool {
	b.mu.Lock()
	if b.state == s {
		b.mu.Unlock()
		return false
	}
	b.state = s
	fns := make([]func(State), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
	return true
}

// Manual is an Observer whose state is set by the caller.
type Manual struct {
	*broadcaster
}

// NewManual creates a manual observer starting at initial.
func NewManual(initial State) *Manual {
	return &Manual{broadcaster: newBroadcaster(initial)}
}

func (m *Manual) Current(context.Context) State {
	return m.current()
}

// Set changes the state, notifying subscribers when it changed.
func (m *Manual) Set(s State) {
	m.set(s)
}

// SetOnline is a shorthand for a reachable or unreachable network.
func (m *Manual) SetOnline(online bool) {
	if online {
		m.Set(State{IsOnline: true, Type: "manual", IsInternetReachable: true})
		return
	}
	m.Set(Offline)
}
