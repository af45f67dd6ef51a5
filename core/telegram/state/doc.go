// Package state provides a lightweight FSM/session manager for Telegram bots.
// Sessions are keyed by user id and carry a flow category; at most one flow
// may be open per user, and a conflicting start is rejected rather than
// silently replacing the open flow.
package state
