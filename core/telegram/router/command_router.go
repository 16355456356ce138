package router

import (
	"log/slog"
	"time"

	"github.com/busly/routafare/core/logger"
	tg "github.com/busly/routafare/core/telegram"
	"github.com/busly/routafare/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how registered commands are wired.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes builds one route per registered command. The logger sits
// outermost so even admin-rejected invocations leave a receipt line.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	guard := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for cmd, def := range cmds {
		name := "command." + normalizeHandlerName(cmd)
		base := def.Handler

		h := func(c tele.Context) error {
			start := time.Now()
			return handleWithSummary(c, name, start, "", "", func() error {
				return base(c)
			})
		}
		h = middleware.RecoverMiddleware(h)
		if def.AdminOnly {
			h = guard(h)
		}
		h = middleware.LoggerMiddleware(h)

		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
	}

	logger.Info(logger.Background(), "tg.wire", "wire.complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
