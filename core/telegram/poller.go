package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// BuildLongPoller returns the poller used in long-polling mode.
// Webhook mode does not use a telebot poller at all: updates are decoded
// by the wire server and fed through Bot.ProcessUpdate.
func BuildLongPoller(timeoutSeconds int) tele.Poller {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	return &tele.LongPoller{Timeout: time.Duration(timeoutSeconds) * time.Second}
}
