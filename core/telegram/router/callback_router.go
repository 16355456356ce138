package router

import (
	"log/slog"
	"time"

	tg "github.com/busly/routafare/core/telegram"
	"github.com/busly/routafare/core/telegram/callbacks"
	"github.com/busly/routafare/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises what happens when a callback key has no
// registered handler.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns the single OnCallback route. Keys are resolved
// through the registry; the callback query is acknowledged up front so the
// client spinner stops even when the handler goes on to do slow work.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	h := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		key, _ := callbacks.KeyPayload(cb)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		_ = c.Respond()

		if fn, ok := reg.GetCallback(key); ok && fn != nil {
			return handleWithSummary(c, name, start, "", "", func() error {
				return fn(c)
			}, extras...)
		}

		fb := reg.CallbackNotFound()
		if fb == nil {
			fb = opts.NotFound
		}
		extras = append(extras, slog.String("reason", "not_found"))
		return handleWithSummary(c, name, start, "", "", func() error {
			if fb == nil {
				return nil
			}
			return fb(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
	}
}
