package state

import (
	"errors"
	"time"

	tele "gopkg.in/telebot.v4"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// FlowCategory names a family of multi-step flows. A user may hold at most
// one open session regardless of category; conflicting starts are rejected.
type FlowCategory string

// ErrFlowInProgress is returned by Begin when the user already has an open
// session. The caller is expected to surface it instead of replacing the flow.
var ErrFlowInProgress = errors.New("state: another flow is already in progress")

// Session stores the live state of one in-progress multi-step user flow.
type Session struct {
	UserID   int64
	Category FlowCategory
	State    State
	// Data holds the flow-owned payload. Each flow defines its own struct
	// and type-asserts on access.
	Data any

	StartedAt time.Time
	touchedAt time.Time
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager interface {
	// Begin opens a session for the user. It fails with ErrFlowInProgress
	// when any non-expired session is already open.
	Begin(userID int64, category FlowCategory, st State, data any) (*Session, error)
	// Active returns the open session, if any. Expired sessions are discarded.
	Active(userID int64) (*Session, bool)
	// Advance moves the open session to the given state and refreshes its TTL.
	Advance(userID int64, st State)
	// Cancel discards the open session. It reports whether one was open.
	Cancel(userID int64) bool
	// Finish discards the open session after a terminal state.
	Finish(userID int64)

	InProgress(userID int64) bool
	GetState(userID int64) State

	// ManagerHandler dispatches the update to the handler registered for the
	// user's current state.
	ManagerHandler(c tele.Context) error
}
