package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/busly/routafare/core/logger"
	"github.com/busly/routafare/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var asyncDisp atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the async sender used by the send helpers. Pass nil to
// fall back to synchronous sends, which shutdown relies on.
func SetDispatcher(d *sender.Dispatcher) {
	asyncDisp.Store(d)
}

// queueSend hands run to the dispatcher, falling back to a direct call when
// no dispatcher is wired or the queue cannot take more work.
func queueSend(c tele.Context, action, endpoint string, run func() error) error {
	disp := asyncDisp.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, endpoint, run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	default:
		return err
	}
}

// SendText sends plain text to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	return queueSend(c, "send.text", "sendMessage", func() error {
		if len(opts) > 0 && opts[0] != nil {
			return c.Send(text, opts[0])
		}
		return c.Send(text)
	})
}

// SendMD sends Markdown-formatted text with an optional inline keyboard.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return SendText(c, text, opts)
}
