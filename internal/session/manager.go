package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/geometry-runner/internal/game"
	"github.com/geometry-runner/internal/metrics"
)

// ErrSessionLimit is returned when the server is at capacity.
var ErrSessionLimit = errors.New("session limit reached")

// Manager tracks live sessions and enforces the capacity cap. Sessions
// remove themselves when their goroutine exits.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
	cfg      Config
	submit   Submitter
	logger   *slog.Logger
}

func NewManager(cfg Config, maxSessions int, submit Submitter, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		max:      maxSessions,
		cfg:      cfg,
		submit:   submit,
		logger:   logger,
	}
}

// StartSession creates and starts a session for one connection. The
// caller keeps feeding commands into the returned session's Inbox.
func (m *Manager) StartSession(playerID string, conn Conn, keeper *game.ScoreKeeper) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.max > 0 && len(m.sessions) >= m.max {
		return nil, ErrSessionLimit
	}

	id := uuid.New().String()
	s := New(id, playerID, conn, keeper, m.submit, m.cfg, m.logger)
	s.OnClose = func() {
		m.remove(id)
	}
	m.sessions[id] = s
	metrics.SessionStarted()

	go s.Run()
	return s, nil
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		metrics.SessionEnded()
	}
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops every live session and waits for each to finish,
// including any in-flight score submission.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		<-s.Done()
	}
}
