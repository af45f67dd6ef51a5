// Package session defines the flow categories, FSM states, and flow-owned
// payloads for the bot's multi-step conversations.
package session

import (
	"github.com/m3rciful/packbot/core/telegram/state"
	"github.com/m3rciful/packbot/internal/models"
	"github.com/m3rciful/packbot/internal/render"
)

// Flow categories. One open session per user across all of them.
const (
	FlowCreate   state.FlowCategory = "create"
	FlowAdd      state.FlowCategory = "add"
	FlowRemove   state.FlowCategory = "remove"
	FlowDelete   state.FlowCategory = "delete"
	FlowAdaptive state.FlowCategory = "adaptive"
)

// Creation flow states.
const (
	StateCreateAwaitingName  state.State = "create.awaiting_name"
	StateCreateAwaitingFirst state.State = "create.awaiting_first_item"
)

// Add flow states.
const (
	StateAddAwaitingPack state.State = "add.awaiting_pack_selection"
)

// Removal flow states.
const (
	StateRemoveAwaitingPack    state.State = "remove.awaiting_pack_selection"
	StateRemoveAwaitingTarget  state.State = "remove.awaiting_target_item"
	StateRemoveAwaitingConfirm state.State = "remove.awaiting_confirmation"
)

// Deletion flow states.
const (
	StateDeleteAwaitingPack    state.State = "delete.awaiting_pack_selection"
	StateDeleteAwaitingConfirm state.State = "delete.awaiting_confirmation"
)

// Adaptive flow states.
const (
	StateAdaptiveAwaitingInput      state.State = "adaptive.awaiting_input"
	StateAdaptiveAwaitingFont       state.State = "adaptive.awaiting_font"
	StateAdaptiveAwaitingBackground state.State = "adaptive.awaiting_background"
)

// CreateData is the payload of the creation flow.
type CreateData struct {
	Kind  models.PackKind
	Paid  bool
	Name  string
	Title string
}

// AddData is the payload of the add-item flow.
type AddData struct {
	PackID int64
	// PendingRef holds the bare item that started the flow, when the user
	// sent an asset before choosing a pack.
	PendingRef   string
	PendingEmoji string
	Animated     bool
}

// RemoveData is the payload of the item-removal flow.
type RemoveData struct {
	PackID int64
	ItemID int64
}

// DeleteData is the payload of the pack-deletion flow.
type DeleteData struct {
	PackID int64
	Slug   string
}

// AdaptiveData is the payload of the adaptive-emoji flow. Lines accumulate
// while the user keeps sending text messages; font and background selections
// land here from callbacks.
type AdaptiveData struct {
	PackID     int64
	InputKind  render.InputKind
	ContentRef string
	Lines      []string
	Animated   bool
	FontIndex  int
	Background render.BackgroundMode
}

// Create returns the creation payload of the session, or nil.
func Create(s *state.Session) *CreateData {
	if s == nil {
		return nil
	}
	d, _ := s.Data.(*CreateData)
	return d
}

// Add returns the add-item payload of the session, or nil.
func Add(s *state.Session) *AddData {
	if s == nil {
		return nil
	}
	d, _ := s.Data.(*AddData)
	return d
}

// Remove returns the removal payload of the session, or nil.
func Remove(s *state.Session) *RemoveData {
	if s == nil {
		return nil
	}
	d, _ := s.Data.(*RemoveData)
	return d
}

// Delete returns the deletion payload of the session, or nil.
func Delete(s *state.Session) *DeleteData {
	if s == nil {
		return nil
	}
	d, _ := s.Data.(*DeleteData)
	return d
}

// Adaptive returns the adaptive payload of the session, or nil.
func Adaptive(s *state.Session) *AdaptiveData {
	if s == nil {
		return nil
	}
	d, _ := s.Data.(*AdaptiveData)
	return d
}
