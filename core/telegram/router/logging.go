package router

import (
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/busly/routafare/core/logger"
	tghelpers "github.com/busly/routafare/core/telegram/helpers"
	"github.com/busly/routafare/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// handleWithSummary runs fn and then emits a single handler.handled line
// carrying status, outcome, reply counters and duration. Every routed update
// funnels through here so the summary shape stays uniform across commands,
// free text and callbacks.
func handleWithSummary(c tele.Context, name string, start time.Time, statusOverride, outcomeOverride string, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, name)
	err := fn()
	logHandlerSummary(c, name, start, statusOverride, outcomeOverride, err, extras...)
	return err
}

func logHandlerSummary(c tele.Context, name string, start time.Time, statusOverride, outcomeOverride string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	sent, kb := middleware.Counters(c)

	attrs := []slog.Attr{
		slog.String("status", pickLabel(statusOverride, err)),
		slog.String("handler", name),
		slog.String("outcome", pickLabel(outcomeOverride, err)),
		slog.Int("messages", sent),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
			slog.String("cause", name),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

// pickLabel resolves a status or outcome label: an explicit override wins,
// otherwise the error decides.
func pickLabel(override string, err error) string {
	if override != "" {
		return override
	}
	if err != nil {
		return "fail"
	}
	return "ok"
}

func normalizeHandlerName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// deriveErrorCode prefers an explicit Code() accessor and falls back to the
// concrete error type name so unknown failures still group in log queries.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	if c, ok := err.(coder); ok {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return codeLabel(code)
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return codeLabel(t.Name())
}

func codeLabel(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", "_"))
}
