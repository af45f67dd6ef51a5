package bot

import (
	"fmt"
	"testing"

	"github.com/m3rciful/packbot/internal/domain"
)

func TestIsSingleEmoji(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"😀", true},
		{"🧩", true},
		{"👍🏻", true}, // skin tone modifier
		{"❤️", true}, // variation selector
		{"", false},
		{"hi", false},
		{"a", false},
		{"😀😀😀😀😀", false}, // too long
		{"/start", false},
		{"😀 ", false}, // trailing space
		// Non-emoji symbols and CJK text must not trigger the add flow.
		{"漢", false},
		{"中文字符", false},
		{"†", false},
		{"№", false},
	}
	for _, tc := range cases {
		if got := isSingleEmoji(tc.text); got != tc.want {
			t.Errorf("isSingleEmoji(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestUserMessageCoversTaxonomy(t *testing.T) {
	sentinels := []error{
		domain.ErrQuotaExceeded,
		domain.ErrCapacityExceeded,
		domain.ErrNameLengthInvalid,
		domain.ErrNotEntitled,
		domain.ErrOwnerOnly,
		domain.ErrNotAuthorized,
		domain.ErrNotFound,
		domain.ErrDuplicateName,
		domain.ErrFlowInProgress,
		domain.ErrPlatformFailure,
		domain.ErrInconsistentState,
		domain.ErrUnsupportedBackground,
		domain.ErrValidation,
	}
	generic := userMessage(fmt.Errorf("boom"))
	for _, s := range sentinels {
		if msg := userMessage(s); msg == generic {
			t.Errorf("userMessage(%v) fell through to the generic line", s)
		}
	}
	// Wrapped sentinels keep their message.
	wrapped := domain.Wrap(domain.ErrCapacityExceeded, fmt.Errorf("cause"))
	if userMessage(wrapped) != userMessage(domain.ErrCapacityExceeded) {
		t.Error("wrapped sentinel should map to the same message")
	}
}

func TestMdEscape(t *testing.T) {
	if got := mdEscape("plain title"); got != "plain title" {
		t.Fatalf("mdEscape(plain) = %q", got)
	}
	for _, bad := range []string{"*bold*", "_sneaky_", "[link]"} {
		if got := mdEscape(bad); got == bad {
			t.Errorf("mdEscape(%q) left markup unescaped", bad)
		}
	}
}

func TestOwnerAuthorizer(t *testing.T) {
	auth := OwnerAuthorizer{OwnerID: 42}
	if !auth.IsAuthorized(42, CapAdmin) {
		t.Fatal("owner should be authorized")
	}
	if auth.IsAuthorized(7, CapAdmin) {
		t.Fatal("non-owner should be rejected")
	}
	// A zero owner id authorizes nobody, not everybody.
	if (OwnerAuthorizer{}).IsAuthorized(0, CapBroadcast) {
		t.Fatal("unconfigured authorizer should reject")
	}
}
