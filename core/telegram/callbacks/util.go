package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// KeyPayload extracts the callback key and payload regardless of whether
// telebot already routed the callback (Unique set, Data reduced to the
// payload) or delivered it raw through the generic endpoint. Raw data uses
// telebot's \f<unique>|<payload> encoding.
func KeyPayload(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\\f")
	key, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(key), payload
}

// CallbackPayload returns the callback payload for the update carried by c.
func CallbackPayload(c tele.Context) string {
	_, payload := KeyPayload(c.Callback())
	return payload
}
