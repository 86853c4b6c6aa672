// internal/store/memory.go
//
// In-memory session store.
// Each browser tab (or terminal player) owns one *game.Machine, keyed by a
// random session id. Nothing is persisted; state is lost on restart.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Get refreshes the session's last-touched time.
//   - Sweep drops sessions idle for longer than a given window.
//   - Removed sessions are closed after the lock is released.

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/oceantree/internal/game"
)

// ErrNotFound is returned for unknown or swept session ids.
var ErrNotFound = errors.New("session not found")

// Store is the session registry used by the HTTP layer.
type Store interface {
	// Create registers m under a fresh id and returns the id.
	Create(ctx context.Context, m *game.Machine) (string, error)

	// Get retrieves a session and marks it as recently used.
	Get(ctx context.Context, id string) (*game.Machine, error)

	// Delete removes a session; deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Sweep removes every session idle for longer than idle and returns
	// how many were dropped.
	Sweep(ctx context.Context, idle time.Duration) int

	// Len reports the number of live sessions.
	Len() int
}

type entry struct {
	machine *game.Machine
	touched time.Time
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return newMemory(time.Now)
}

func newMemory(now func() time.Time) *memory {
	return &memory{sessions: make(map[string]*entry), now: now}
}

func (m *memory) Create(ctx context.Context, g *game.Machine) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id.String()] = &entry{machine: g, touched: m.now()}
	return id.String(), nil
}

func (m *memory) Get(ctx context.Context, id string) (*game.Machine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.touched = m.now()
	return e.machine, nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		// Stops outstanding timers and hangs up open streams.
		e.machine.Close()
	}
	return nil
}

func (m *memory) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	var dropped []*game.Machine
	m.mu.Lock()
	for id, e := range m.sessions {
		if e.touched.Before(cutoff) {
			dropped = append(dropped, e.machine)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, g := range dropped {
		g.Close()
	}
	return len(dropped)
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
