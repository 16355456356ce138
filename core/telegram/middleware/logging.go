package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/busly/routafare/core/logger"
	"github.com/busly/routafare/core/telegram/callbacks"
	tghelpers "github.com/busly/routafare/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update IDs. The logger middleware is
// installed on every route branch, so the same update can pass through it
// more than once; a receipt line is only worth emitting the first time.
type seenUpdates struct {
	mu  sync.Mutex
	ids map[int]time.Time
	ttl time.Duration
}

// mark reports whether id is new, recording it and expiring stale entries.
func (s *seenUpdates) mark(id int) bool {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for old, ts := range s.ids {
		if now.Sub(ts) > s.ttl {
			delete(s.ids, old)
		}
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = now
	return true
}

var seen = &seenUpdates{ids: make(map[int]time.Time), ttl: 10 * time.Second}

// LoggerMiddleware stamps each update with a request id, stores a derived
// context for downstream handlers and emits a sampled receipt line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()

		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}

		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && seen.mark(upd.ID) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c, rid, chatID, userID)...)
		}

		return next(c)
	}
}

// receiptAttrs collects the identifying fields for an update.received line.
func receiptAttrs(c tele.Context, rid string, chatID, userID int64) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("rid", rid),
		slog.Int("update_id", upd.ID),
	}
	if chat := c.Chat(); chat != nil && chatID != 0 {
		attrs = append(attrs,
			slog.Int64("chat_id", chatID),
			slog.String("chat_type", string(chat.Type)),
		)
	}
	if user := c.Sender(); user != nil && userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.KeyPayload(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
	}
	return attrs
}
