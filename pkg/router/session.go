package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielmiguelok/applyform/pkg/core"
)

// Session errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionBusy     = errors.New("session inbox full")
)

const infoBuffer = 16

// Session binds one component instance to one live connection.
type Session struct {
	// ID is the session identifier, exposed to the component as core.SessionID.
	ID string

	// Component is the session's component instance.
	Component core.Component

	// Params are the URL query parameters of the connection.
	Params core.Params

	// Data is the session data passed to Mount.
	Data core.Session

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	lastActivity time.Time
	mounted      bool
	reason       core.TerminateReason

	infoCh chan any
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	mu     sync.RWMutex
}

func newSession(comp core.Component, params core.Params, data core.Session) *Session {
	now := time.Now()
	id := uuid.NewString()
	if data == nil {
		data = core.Session{}
	}
	data[core.SessionID] = id
	data[core.SessionConnected] = true
	return &Session{
		ID:           id,
		Component:    comp,
		Params:       params,
		Data:         data,
		CreatedAt:    now,
		lastActivity: now,
		infoCh:       make(chan any, infoBuffer),
		done:         make(chan struct{}),
		cancel:       func() {},
	}
}

// Send delivers msg to the component's HandleInfo from the session's own
// loop. It never blocks.
func (s *Session) Send(msg any) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.infoCh <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrSessionBusy
	}
}

// Touch records activity.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the last activity.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Mounted reports whether the component has been mounted.
func (s *Session) Mounted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mounted
}

func (s *Session) setMounted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounted = true
}

// Stop ends the session's loop with reason.
func (s *Session) Stop(reason core.TerminateReason) {
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.done)
		s.cancel()
	})
}

// Done is closed once the session is stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) terminateReason() core.TerminateReason {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// SessionManager tracks the live sessions of a router.
type SessionManager struct {
	sessions    map[string]*Session
	maxSessions int
	mu          sync.RWMutex
}

// NewSessionManager creates a manager; maxSessions <= 0 means unlimited.
func NewSessionManager(maxSessions int) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
	}
}

// Create registers a new session. When the limit is reached the least
// recently active session is stopped to make room.
func (m *SessionManager) Create(comp core.Component, params core.Params, data core.Session) *Session {
	s := newSession(comp, params, data)

	m.mu.Lock()
	var evicted *Session
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		evicted = m.oldestLocked()
		if evicted != nil {
			delete(m.sessions, evicted.ID)
		}
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if evicted != nil {
		evicted.Stop(core.TerminateTimeout)
	}
	return s
}

// Get returns the session with id.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove forgets the session with id.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of active sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// All returns a snapshot of the active sessions.
func (m *SessionManager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Cleanup stops sessions idle for longer than idle and returns how many.
func (m *SessionManager) Cleanup(idle time.Duration) int {
	now := time.Now()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) > idle {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Stop(core.TerminateTimeout)
	}
	return len(expired)
}

// StartCleanupRoutine sweeps idle sessions every interval until stopCh closes.
func (m *SessionManager) StartCleanupRoutine(interval, idle time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Cleanup(idle)
			case <-stopCh:
				return
			}
		}
	}()
}

func (m *SessionManager) oldestLocked() *Session {
	var oldest *Session
	for _, s := range m.sessions {
		if oldest == nil || s.LastActivity().Before(oldest.LastActivity()) {
			oldest = s
		}
	}
	return oldest
}
