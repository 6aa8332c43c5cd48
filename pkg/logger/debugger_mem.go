package logger

import (
	"sync"
	"time"
)

// MemDebugger is a process local [Debugger] implementation.
type MemDebugger struct {
	mu  sync.RWMutex
	dbs map[string]time.Time
}

// NewMemDebugger instantiates a new [MemDebugger].
func NewMemDebugger() *MemDebugger {
	return &MemDebugger{dbs: make(map[string]time.Time)}
}

// AddDatabase adds the specified database to the debug list, or updates its
// ttl if it is already listed.
func (m *MemDebugger) AddDatabase(db string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dbs[db] = time.Now().Add(ttl)
	return nil
}

// RemoveDatabase removes the specified database from the debug list.
func (m *MemDebugger) RemoveDatabase(db string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dbs, db)
	return nil
}

// ExpiresAt returns the expiration time of the debug mode for the database,
// or nil if the database is not listed or its ttl has expired.
func (m *MemDebugger) ExpiresAt(db string) *time.Time {
	m.mu.RLock()
	t, ok := m.dbs[db]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if time.Now().After(t) {
		m.mu.Lock()
		if t2, ok := m.dbs[db]; ok && t2.Equal(t) {
			delete(m.dbs, db)
		}
		m.mu.Unlock()
		return nil
	}
	return &t
}
