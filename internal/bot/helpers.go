package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/packbot/core/telegram/callbacks"
	"github.com/m3rciful/packbot/core/telegram/format"
	"github.com/m3rciful/packbot/internal/domain"
)

// mdEscape escapes user-supplied text before it lands in a Markdown message.
func mdEscape(s string) string {
	out, err := format.EscapeMarkdown(s, format.MarkdownV1, "")
	if err != nil {
		return s
	}
	return out
}

// Shorthands for the taxonomy sentinels used across flow handlers.
var (
	errNameLength = domain.ErrNameLengthInvalid
	errBadItem    = domain.ErrValidation
	errOwnerOnly  = domain.ErrOwnerOnly
	errCapacity   = domain.ErrCapacityExceeded

	errNotAuthorized = domain.ErrNotAuthorized
)

// callbackID parses the callback payload as a single int64 id.
func callbackID(c tele.Context) (int64, error) {
	return callbacks.PayloadInt64(c)
}

// payload returns the raw callback payload.
func payload(c tele.Context) string {
	return callbacks.CallbackPayload(c)
}

// isSingleEmoji reports whether text is one emoji grapheme: a base rune from
// the emoji blocks plus optional variation, join, keycap, or skin tone runes.
func isSingleEmoji(text string) bool {
	runes := []rune(text)
	if len(runes) == 0 || len(runes) > 4 {
		return false
	}
	base := false
	for _, r := range runes {
		switch {
		case r == 0xFE0F || r == 0x200D || r == 0x20E3:
		case r >= 0x1F3FB && r <= 0x1F3FF:
		case emojiBase(r):
			base = true
		default:
			return false
		}
	}
	return base
}

func emojiBase(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r >= 0x2190 && r <= 0x21FF:
		return true
	case r >= 0x2300 && r <= 0x23FF:
		return true
	}
	return false
}

// commandArg returns the first whitespace-separated argument after the
// command, lowercased.
func commandArg(c tele.Context) string {
	fields := strings.Fields(c.Text())
	if len(fields) < 2 {
		return ""
	}
	return strings.ToLower(fields[1])
}

// commandTail returns everything after the command, untrimmed of case.
func commandTail(c tele.Context) string {
	text := c.Text()
	if i := strings.IndexAny(text, " \n"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return ""
}

// userMessage maps a domain error to the text shown to the user. Unknown
// errors get a generic line; the router logs the cause either way.
func userMessage(err error) string {
	switch domain.CodeOf(err) {
	case "quota_exceeded":
		return "You have no free pack slots left. /bpack unlocks paid packs."
	case "capacity_exceeded":
		return "This pack is full."
	case "name_length_invalid":
		return "That name length is not allowed. Try another one."
	case "not_entitled":
		return "This action needs a paid tier. See /bpack."
	case "owner_only":
		return "This action is not available for your account yet."
	case "not_authorized":
		return "You are not allowed to do that."
	case "not_found":
		return "I could not find that anymore."
	case "duplicate_name":
		return "A pack with this name already exists. Pick another name."
	case "flow_in_progress":
		return "You already have a flow in progress. Finish it or /cancel first."
	case "platform_failure":
		return "Telegram rejected the operation. Nothing was changed, try again later."
	case "inconsistent_state":
		return "Something went wrong mid-way. The result is uncertain, the operator was notified."
	case "unsupported_background":
		return "That background is not available for this render. Pick another one."
	case "validation_error":
		return "I could not use that input. Try again."
	}
	return "Something went wrong. Try again later."
}
