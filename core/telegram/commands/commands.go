package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command describes one registered bot command.
//
// Aliases are bare words that trigger the command without a slash, which is
// how conversational shortcuts like "ser" reach /search. Hidden commands
// stay out of the Telegram command menu but remain invocable.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}
