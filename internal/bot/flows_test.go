package bot

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/packbot/core/telegram"
	"github.com/m3rciful/packbot/core/telegram/state"
	"github.com/m3rciful/packbot/internal/session"
)

// stubContext is the minimal tele.Context surface the FSM dispatch touches.
// Methods outside this set panic through the embedded nil interface.
type stubContext struct {
	tele.Context
	userID int64
	text   string
	kv     map[string]any
	sent   []string
}

func (s *stubContext) Sender() *tele.User     { return &tele.User{ID: s.userID} }
func (s *stubContext) Chat() *tele.Chat       { return &tele.Chat{ID: s.userID} }
func (s *stubContext) Update() tele.Update    { return tele.Update{ID: 1} }
func (s *stubContext) Message() *tele.Message { return &tele.Message{Text: s.text} }
func (s *stubContext) Text() string           { return s.text }

func (s *stubContext) Get(key string) any { return s.kv[key] }

func (s *stubContext) Set(key string, val any) {
	if s.kv == nil {
		s.kv = map[string]any{}
	}
	s.kv[key] = val
}

func (s *stubContext) Send(what any, _ ...any) error {
	if text, ok := what.(string); ok {
		s.sent = append(s.sent, text)
	}
	return nil
}

func TestButtonStatesAnswerStrayMessages(t *testing.T) {
	mgr := state.NewMemoryManager(0)
	h := New(Options{Sessions: mgr})
	h.Register(tg.NewRegistry())

	cases := []struct {
		category state.FlowCategory
		st       state.State
		data     any
	}{
		{session.FlowRemove, session.StateRemoveAwaitingPack, &session.RemoveData{}},
		{session.FlowRemove, session.StateRemoveAwaitingTarget, &session.RemoveData{PackID: 1}},
		{session.FlowRemove, session.StateRemoveAwaitingConfirm, &session.RemoveData{PackID: 1, ItemID: 1}},
		{session.FlowDelete, session.StateDeleteAwaitingPack, &session.DeleteData{}},
		{session.FlowDelete, session.StateDeleteAwaitingConfirm, &session.DeleteData{PackID: 1}},
		{session.FlowAdaptive, session.StateAdaptiveAwaitingFont, &session.AdaptiveData{Lines: []string{"hi"}}},
		{session.FlowAdaptive, session.StateAdaptiveAwaitingBackground, &session.AdaptiveData{Lines: []string{"hi"}}},
	}
	for i, tc := range cases {
		userID := int64(100 + i)
		if _, err := mgr.Begin(userID, tc.category, tc.st, tc.data); err != nil {
			t.Fatalf("begin %s: %v", tc.st, err)
		}
		c := &stubContext{userID: userID, text: "which button?"}
		if err := mgr.ManagerHandler(c); err != nil {
			t.Fatalf("dispatch in %s: %v", tc.st, err)
		}
		if len(c.sent) == 0 {
			t.Errorf("message in %s was dropped without a reply", tc.st)
		}
		// The flow survives the stray message.
		if got := mgr.GetState(userID); got != tc.st {
			t.Errorf("state after reprompt = %s, want %s", got, tc.st)
		}
		mgr.Finish(userID)
	}
}
