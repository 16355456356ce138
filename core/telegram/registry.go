package telegram

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/busly/routafare/core/logger"
	"github.com/busly/routafare/core/telegram/commands"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Registry collects the command and callback handlers the routers dispatch
// to. Commands are registered once during wiring; callbacks may be added
// later, hence the lock around them.
type Registry struct {
	cmds         map[string]commands.Command
	cbs          map[string]tele.HandlerFunc
	cbMu         sync.RWMutex
	cbNotFound   tele.HandlerFunc
	textFallback tele.HandlerFunc
}

// NewRegistry returns an empty registry. Unknown callbacks get a generic
// toast until SetCallbackNotFound installs something friendlier.
func NewRegistry() *Registry {
	r := &Registry{
		cmds: map[string]commands.Command{},
		cbs:  map[string]tele.HandlerFunc{},
	}
	r.cbNotFound = func(c tele.Context) error {
		_ = c.Respond(&tele.CallbackResponse{Text: "Unknown action"})
		return nil
	}
	return r
}

// RegisterCommand adds a command under its slash name. Invalid or duplicate
// registrations are logged and dropped so a wiring mistake cannot take the
// bot down.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if reason := commandProblem(r, name, cmd); reason != "" {
		logger.Warn(logger.Background(), "tg.wire", "register.command.skip",
			slog.String("name", name),
			slog.String("reason", reason),
		)
		return
	}
	if _, dup := r.cmds[name]; dup {
		logger.Warn(logger.Background(), "tg.wire", "register.command.duplicate",
			slog.String("name", name),
		)
		return
	}
	r.cmds[name] = cmd
}

func commandProblem(r *Registry, name string, cmd commands.Command) string {
	switch {
	case r == nil || name == "" || cmd.Handler == nil || cmd.Description == "":
		return "invalid"
	case name[0] != '/':
		return "no_slash_prefix"
	}
	return ""
}

// ListCommands returns the registered commands, optionally restricted to the
// ones that belong in the public Telegram command menu.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for name, cmd := range r.cmds {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int {
		return strings.Compare(a.Text, b.Text)
	})
	return list
}

// LookupCommand resolves a command by canonical name or alias. Aliases are
// what let bare words like "ser" trigger a command without the slash.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if cmd, ok := r.cmds[name]; ok {
		return name, cmd, true
	}
	bare := strings.TrimPrefix(name, "/")
	for key, cmd := range r.cmds {
		for _, alias := range cmd.Aliases {
			if alias == bare || alias == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands exposes the full command table for wiring.
func (r *Registry) Commands() map[string]commands.Command {
	return r.cmds
}

// RegisterCallback maps a callback key to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if r == nil || key == "" || handler == nil {
		logger.Warn(logger.Background(), "tg.wire", "register.callback.skip",
			slog.String("key", key),
			slog.Bool("handler_nil", handler == nil),
		)
		return errors.New("callback registration rejected")
	}
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	if _, dup := r.cbs[key]; dup {
		logger.Warn(logger.Background(), "tg.wire", "register.callback.duplicate",
			slog.String("key", key),
		)
		return fmt.Errorf("duplicate callback key %q", key)
	}
	r.cbs[key] = handler
	return nil
}

// GetCallback returns the handler registered under key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.cbMu.RLock()
	defer r.cbMu.RUnlock()
	h, ok := r.cbs[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys, sorted for diagnostics.
func (r *Registry) ListCallbacks() []string {
	r.cbMu.RLock()
	defer r.cbMu.RUnlock()
	return slices.Sorted(maps.Keys(r.cbs))
}

// SetCallbackNotFound replaces the fallback for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.cbNotFound = h
	}
}

// CallbackNotFound returns the fallback for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.cbNotFound
}

// SetTextFallback installs the handler for text that matches no command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the handler for text that matches no command.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// InitBotCommands publishes the visible commands to the Telegram menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	visible := reg.ListCommands(true)
	if err := bot.SetCommands(visible); err != nil {
		logger.Error(logger.Background(), "tg.wire", "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
