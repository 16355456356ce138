package app

import (
	"fmt"
	"log/slog"

	"github.com/busly/routafare/core/logger"
	tg "github.com/busly/routafare/core/telegram"
	"github.com/busly/routafare/core/telegram/callbacks"
	"github.com/busly/routafare/core/telegram/commands"
	tghelpers "github.com/busly/routafare/core/telegram/helpers"
	"github.com/busly/routafare/internal/dialog"
	"github.com/busly/routafare/internal/store"

	tele "gopkg.in/telebot.v4"
)

const welcomeText = "Welcome! Type **ser** to start a search."

const staleKeyboardText = "That button isn't active anymore. Type **ser** to start a new search."

const statsFmt = "📊 **Service stats**\n" +
	"Services: %d\nRoutes: %d\nDepartures: %d\nBookings: %d\nSubscribers: %d\nActive sessions: %d"

func (a *App) buildRegistry() *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleWelcome,
		Description: "Welcome and usage hints",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleWelcome,
		Description: "How to use the bot",
	})
	reg.RegisterCommand("/search", commands.Command{
		Handler:     a.handleSearch,
		Description: "Start a bus search",
		Aliases:     []string{"ser", "search"},
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Abort the active search",
		Aliases:     []string{"cancel"},
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Service counters",
		AdminOnly:   true,
		Hidden:      true,
	})

	reg.SetTextFallback(a.handleLooseText)
	reg.SetCallbackNotFound(a.handleStaleKeyboard)

	for _, key := range []string{
		dialog.KeySelectRoute,
		dialog.KeySelectAge,
		dialog.KeySelectTraffic,
		dialog.KeySelectBus,
		dialog.KeyConfirm,
		dialog.KeyCancel,
	} {
		_ = reg.RegisterCallback(key, a.selectionHandler(key))
	}

	return reg
}

func (a *App) handleWelcome(c tele.Context) error {
	return tghelpers.SendMD(c, welcomeText)
}

func (a *App) handleSearch(c tele.Context) error {
	return a.flow.StartSearch(tghelpers.BuildContext(c), textEvent(c))
}

func (a *App) handleCancel(c tele.Context) error {
	return a.flow.CancelFlow(tghelpers.BuildContext(c), eventChatID(c))
}

func (a *App) handleStats(c tele.Context) error {
	departures := 0
	for _, svc := range a.sched.Services() {
		departures += len(svc.DepartureTimes)
	}
	return tghelpers.SendMD(c, fmt.Sprintf(statsFmt,
		a.sched.Len(),
		len(a.sched.RouteNames()),
		departures,
		a.bookings.Count(),
		a.subscribers.Count(),
		a.sessions.ActiveCount(),
	))
}

// handleLooseText is the registry fallback: text that is neither a command
// nor part of an active dialogue still goes through the flow, which answers
// with usage hints.
func (a *App) handleLooseText(c tele.Context) error {
	return a.flow.HandleText(tghelpers.BuildContext(c), textEvent(c))
}

// handleStaleKeyboard answers taps on keyboards whose actions no longer
// exist, typically messages left over from an older build. The router has
// already acknowledged the callback query.
func (a *App) handleStaleKeyboard(c tele.Context) error {
	return tghelpers.SendMD(c, staleKeyboardText)
}

func (a *App) selectionHandler(key string) tele.HandlerFunc {
	return func(c tele.Context) error {
		sel := dialog.Selection{
			ChatID:  eventChatID(c),
			Key:     key,
			Payload: callbacks.CallbackPayload(c),
		}
		if u := c.Sender(); u != nil {
			sel.Username = u.Username
			sel.FirstName = u.FirstName
		}
		return a.flow.HandleSelection(tghelpers.BuildContext(c), sel)
	}
}

// fsmAdapter exposes the dialogue flow to the message router.
type fsmAdapter struct {
	flow *dialog.Flow
}

func (f fsmAdapter) InProgress(chatID int64) bool {
	return f.flow.InProgress(chatID)
}

func (f fsmAdapter) ManagerHandler(c tele.Context) error {
	return f.flow.HandleText(tghelpers.BuildContext(c), textEvent(c))
}

// subscriberRecorder notes every chat that ever talks to the bot.
func (a *App) subscriberRecorder() tg.Middleware {
	return tg.Middleware{
		Name: "subscribers",
		Use: func(next tele.HandlerFunc) tele.HandlerFunc {
			return func(c tele.Context) error {
				if id := eventChatID(c); id != 0 {
					if a.subscribers.Add(store.ChatKey(id)) {
						logger.Info(tghelpers.BuildContext(c), "app", "subscriber.added",
							slog.String("chat", store.ChatKey(id)),
							slog.Int("subscribers", a.subscribers.Count()),
						)
					}
				}
				return next(c)
			}
		},
	}
}

func eventChatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

func textEvent(c tele.Context) dialog.TextMessage {
	msg := dialog.TextMessage{ChatID: eventChatID(c), Text: c.Text()}
	if u := c.Sender(); u != nil {
		msg.Username = u.Username
		msg.FirstName = u.FirstName
	}
	return msg
}
