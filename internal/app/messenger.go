package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/busly/routafare/core/logger"
	"github.com/busly/routafare/core/telegram/keyboard"
	"github.com/busly/routafare/core/telegram/sender"
	"github.com/busly/routafare/internal/dialog"

	tele "gopkg.in/telebot.v4"
)

// botMessenger adapts the dialogue's Messenger contract onto the bot API,
// pushing every send through the async dispatcher.
type botMessenger struct {
	disp *sender.Dispatcher
	bot  atomic.Pointer[tele.Bot]
}

func newBotMessenger(disp *sender.Dispatcher) *botMessenger {
	return &botMessenger{disp: disp}
}

// Bind attaches the live bot handle. Sends issued before Bind fail.
func (m *botMessenger) Bind(b *tele.Bot) {
	m.bot.Store(b)
}

func (m *botMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	return m.deliver(ctx, "send.text", chatID, nil, text)
}

func (m *botMessenger) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	return m.deliver(ctx, "send.md", chatID, &tele.SendOptions{ParseMode: tele.ModeMarkdown}, text)
}

func (m *botMessenger) SendChoices(ctx context.Context, chatID int64, text string, rows [][]dialog.Choice) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: choiceMarkup(rows)}
	return m.deliver(ctx, "send.choices", chatID, opts, text)
}

func (m *botMessenger) deliver(ctx context.Context, action string, chatID int64, opts *tele.SendOptions, text string) error {
	bot := m.bot.Load()
	if bot == nil {
		return fmt.Errorf("app: messenger used before the bot started")
	}
	run := func() error {
		var err error
		if opts != nil {
			_, err = bot.Send(tele.ChatID(chatID), text, opts)
		} else {
			_, err = bot.Send(tele.ChatID(chatID), text)
		}
		return err
	}
	if m.disp == nil {
		return run()
	}
	if err := m.disp.Enqueue(ctx, action, "sendMessage", run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

func choiceMarkup(rows [][]dialog.Choice) *tele.ReplyMarkup {
	btnRows := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		btnRow := make([]keyboard.InlineBtn, 0, len(row))
		for _, ch := range row {
			btnRow = append(btnRow, keyboard.InlineBtn{Text: ch.Label, Unique: ch.Key, Data: ch.Payload})
		}
		btnRows = append(btnRows, btnRow)
	}
	return keyboard.InlineButtonsRows(btnRows...)
}
