package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlovans/formwork/pkg/formwork"
)

// liveSession pairs a form session with the lock that serializes access to it.
// formwork.Session is single-threaded; every handler holds mu while using it.
type liveSession struct {
	mu         sync.Mutex
	form       string
	session    *formwork.Session
	createdAt  time.Time
	lastActive atomic.Int64 // unix nanoseconds

	lastSubmission string
}

func (l *liveSession) touch() {
	l.lastActive.Store(time.Now().UnixNano())
}

// Manager handles session registration, lookup, and cleanup.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*liveSession
	maxAge      time.Duration
	idleTimeout time.Duration
}

// NewManager creates a session manager with the given timeouts.
func NewManager(maxAge, idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*liveSession),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
	}
}

// Add registers a mounted session.
func (m *Manager) Add(form string, s *formwork.Session) *liveSession {
	l := &liveSession{form: form, session: s, createdAt: time.Now()}
	l.touch()
	m.mu.Lock()
	m.sessions[s.ID()] = l
	m.mu.Unlock()
	return l
}

// Get retrieves a session by ID. Returns nil if not found or expired.
func (m *Manager) Get(id string) *liveSession {
	m.mu.RLock()
	l, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if m.expired(l) {
		m.Remove(id)
		return nil
	}
	return l
}

// Remove closes and deletes a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	l, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		l.mu.Lock()
		l.session.Close()
		l.mu.Unlock()
	}
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions. Called periodically.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	var stale []*liveSession
	for id, l := range m.sessions {
		if m.expired(l) {
			delete(m.sessions, id)
			stale = append(stale, l)
		}
	}
	m.mu.Unlock()
	for _, l := range stale {
		l.mu.Lock()
		l.session.Close()
		l.mu.Unlock()
	}
	return len(stale)
}

func (m *Manager) expired(l *liveSession) bool {
	idle := time.Since(time.Unix(0, l.lastActive.Load()))
	return time.Since(l.createdAt) > m.maxAge || idle > m.idleTimeout
}
