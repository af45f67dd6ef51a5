package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands, callbacks, or expected documents.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// StaticFallbacks replies with fixed texts for unroutable updates.
type StaticFallbacks struct {
	TextReply     string
	DocumentReply string
	CallbackReply string
}

// UnknownText replies with the configured text, if any.
func (f StaticFallbacks) UnknownText() tele.HandlerFunc {
	return f.reply(f.TextReply)
}

// UnknownDocument replies with the configured text, if any.
func (f StaticFallbacks) UnknownDocument() tele.HandlerFunc {
	return f.reply(f.DocumentReply)
}

// UnknownCallback answers the callback so the client stops spinning.
func (f StaticFallbacks) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: f.CallbackReply})
	}
}

func (f StaticFallbacks) reply(text string) tele.HandlerFunc {
	return func(c tele.Context) error {
		if text == "" {
			return nil
		}
		return c.Send(text)
	}
}
