package state

import tele "gopkg.in/telebot.v4"

const sessionKey = "fsm_session"

// WithSession injects the live session from Manager into the handler context.
func WithSession(mgr Manager) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if sess, ok := mgr.Active(c.Sender().ID); ok {
				c.Set(sessionKey, sess)
			}
			return next(c)
		}
	}
}

// SessionFrom returns the session previously stored by WithSession.
func SessionFrom(c tele.Context) (*Session, bool) {
	if v := c.Get(sessionKey); v != nil {
		if sess, ok := v.(*Session); ok {
			return sess, true
		}
	}
	return nil, false
}
