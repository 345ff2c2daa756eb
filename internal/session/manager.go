package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yegors/clara/pkg/logger"
)

// ErrNotFound is returned for unknown or evicted sessions
var ErrNotFound = errors.New("session not found")

// Manager keeps one Controller per page session and evicts idle ones
type Manager struct {
	backend     Backend
	idleTimeout time.Duration
	logger      *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Controller
	watched  func(id string) bool
}

// NewManager creates a session manager. idleTimeout <= 0 disables eviction.
func NewManager(backend Backend, idleTimeout time.Duration, logger *logger.Logger) *Manager {
	return &Manager{
		backend:     backend,
		idleTimeout: idleTimeout,
		logger:      logger,
		sessions:    make(map[string]*Controller),
	}
}

// SetWatched installs a check for sessions that are still on screen (for
// example with a connected websocket). Sweep never evicts those.
func (m *Manager) SetWatched(watched func(id string) bool) {
	m.mu.Lock()
	m.watched = watched
	m.mu.Unlock()
}

// Create starts a new page session
func (m *Manager) Create() *Controller {
	id := uuid.NewString()
	ctrl := NewController(id, m.backend, m.logger)

	m.mu.Lock()
	m.sessions[id] = ctrl
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Debug("Session created",
		logger.String("session_id", id),
		logger.Int("session_count", count))
	return ctrl
}

// Get returns the controller for id and marks it as used
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	ctrl, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	ctrl.touch()
	return ctrl, nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run evicts idle sessions every interval until ctx is cancelled
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.idleTimeout <= 0 || interval <= 0 {
		m.logger.Info("Session eviction disabled")
		return
	}

	m.logger.Info("Starting session janitor",
		logger.Duration("interval", interval),
		logger.Duration("idle_timeout", m.idleTimeout))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Session janitor stopped")
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

// Sweep removes sessions idle since now minus the idle timeout and returns
// how many were removed. Sessions with a pending request or a watcher are
// kept, and a watched session's idle clock restarts.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.idleTimeout)

	m.mu.Lock()
	var evicted []*Controller
	for id, ctrl := range m.sessions {
		if m.watched != nil && m.watched(id) {
			ctrl.touchAt(now)
			continue
		}
		if ctrl.idleSince(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, ctrl)
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	for _, ctrl := range evicted {
		ctrl.close()
	}

	if len(evicted) > 0 {
		m.logger.Debug("Evicted idle sessions",
			logger.Int("evicted", len(evicted)),
			logger.Int("remaining", remaining))
	}
	return len(evicted)
}
