package state

import (
	"sync"
	"time"

	"log/slog"

	"github.com/m3rciful/packbot/core/logger"
	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryManager constructs an in-memory Manager. Sessions idle longer
// than ttl are discarded lazily on the next access; ttl <= 0 disables expiry.
func NewMemoryManager(ttl time.Duration) Manager {
	return &memoryManager{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *memoryManager) expired(sess *Session) bool {
	if sess == nil {
		return true
	}
	if m.ttl <= 0 {
		return false
	}
	return m.now().Sub(sess.touchedAt) > m.ttl
}

// activeLocked returns the live session, pruning it when expired.
// Caller must hold the write lock.
func (m *memoryManager) activeLocked(userID int64) (*Session, bool) {
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	if m.expired(sess) {
		delete(m.sessions, userID)
		return nil, false
	}
	return sess, true
}

// Begin opens a new session unless a live one already exists.
func (m *memoryManager) Begin(userID int64, category FlowCategory, st State, data any) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, open := m.activeLocked(userID); open {
		return nil, ErrFlowInProgress
	}

	now := m.now()
	sess := &Session{
		UserID:    userID,
		Category:  category,
		State:     st,
		Data:      data,
		StartedAt: now,
		touchedAt: now,
	}
	m.sessions[userID] = sess
	return sess, nil
}

// Active returns the live session for a user, if any.
func (m *memoryManager) Active(userID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked(userID)
}

// Advance moves the live session to the given state and refreshes its TTL.
func (m *memoryManager) Advance(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.activeLocked(userID)
	if !ok {
		return
	}
	sess.State = st
	sess.touchedAt = m.now()
}

// Cancel discards the live session and reports whether one was open.
func (m *memoryManager) Cancel(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, open := m.activeLocked(userID)
	delete(m.sessions, userID)
	return open
}

// Finish removes the session after a terminal state.
func (m *memoryManager) Finish(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// InProgress reports whether the user currently has a live session.
func (m *memoryManager) InProgress(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, open := m.activeLocked(userID)
	return open
}

// GetState returns the current FSM state of a user, or StateIdle if none.
func (m *memoryManager) GetState(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.activeLocked(userID); ok {
		return sess.State
	}
	return StateIdle
}

// ManagerHandler executes the handler registered for the user's current state.
func (m *memoryManager) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	current := m.GetState(userID)
	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("state", string(current)),
	)

	if handler, ok := fsmHandlers[current]; ok {
		return handler(c)
	}
	return nil
}
