package router

import (
	"time"

	tg "github.com/busly/routafare/core/telegram"
	"github.com/busly/routafare/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for the dialogue manager.
// Sessions are keyed by chat identity, so routing consults the chat id.
type FSM interface {
	InProgress(chatID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

func routeChatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if user := c.Sender(); user != nil {
		return user.ID
	}
	return 0
}

// resolveText picks the handler for a plain text update. An active dialogue
// wins; otherwise the text is matched against commands and aliases, then the
// registry fallback, then the unknown-text handler.
func resolveText(c tele.Context, fsmMgr FSM, reg *tg.Registry, opts TextOptions) (string, tele.HandlerFunc) {
	if fsmMgr != nil && fsmMgr.InProgress(routeChatID(c)) {
		return "fsm", fsmMgr.ManagerHandler
	}
	if reg != nil {
		if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
			return normalizeHandlerName(key), cmd.Handler
		}
		if fb := reg.TextFallback(); fb != nil {
			return "fallback", fb
		}
	}
	return "unknown_text", opts.UnknownText
}

func resolveDocument(c tele.Context, fsmMgr FSM, opts TextOptions) (string, tele.HandlerFunc) {
	if fsmMgr != nil && fsmMgr.InProgress(routeChatID(c)) {
		return "fsm_document", fsmMgr.ManagerHandler
	}
	return "unexpected_document", opts.UnknownDocument
}

// TextRoutes builds the OnText and OnDocument routes. Every update leaves a
// summary line; ones that nothing handles are recorded as skipped.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	run := func(c tele.Context, name string, start time.Time, h tele.HandlerFunc) error {
		if h == nil {
			logHandlerSummary(c, name, start, "skip", "ok", nil)
			return nil
		}
		return handleWithSummary(c, name, start, "", "", func() error { return h(c) })
	}

	textHandler := func(c tele.Context) error {
		start := time.Now()
		name, h := resolveText(c, fsmMgr, reg, opts)
		return run(c, name, start, h)
	}
	docHandler := func(c tele.Context) error {
		start := time.Now()
		name, h := resolveDocument(c, fsmMgr, opts)
		return run(c, name, start, h)
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(textHandler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}
