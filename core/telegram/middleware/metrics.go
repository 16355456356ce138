package middleware

import (
	tele "gopkg.in/telebot.v4"
)

// countingContext wraps tele.Context so every outgoing reply bumps the
// per-update counters the handler summary reads back out.
type countingContext struct{ tele.Context }

func (cc countingContext) bump(withKB bool) {
	n, _ := Counters(cc.Context)
	cc.Set("messages", n+1)
	if withKB {
		cc.Set("kb", true)
	}
}

func carriesKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (cc countingContext) Send(what interface{}, opts ...interface{}) error {
	err := cc.Context.Send(what, opts...)
	if err == nil {
		cc.bump(carriesKeyboard(opts))
	}
	return err
}

func (cc countingContext) Reply(what interface{}, opts ...interface{}) error {
	err := cc.Context.Reply(what, opts...)
	if err == nil {
		cc.bump(carriesKeyboard(opts))
	}
	return err
}

// Edit counts as a response too: the user saw the screen change.
func (cc countingContext) Edit(what interface{}, opts ...interface{}) error {
	err := cc.Context.Edit(what, opts...)
	if err == nil {
		cc.bump(carriesKeyboard(opts))
	}
	return err
}

func (cc countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	err := cc.Context.EditOrSend(what, opts...)
	if err == nil {
		cc.bump(carriesKeyboard(opts))
	}
	return err
}

func (cc countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	err := cc.Context.EditOrReply(what, opts...)
	if err == nil {
		cc.bump(carriesKeyboard(opts))
	}
	return err
}

// MessageMetricsMiddleware swaps in a counting context so handlers report
// how many messages they sent and whether any carried a keyboard.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set("messages", 0)
		c.Set("kb", false)
		return next(countingContext{Context: c})
	}
}

// Counters reads the message count and keyboard flag back out of context.
func Counters(c tele.Context) (int, bool) {
	msgs := 0
	if n, ok := c.Get("messages").(int); ok {
		msgs = n
	}
	kb := false
	if b, ok := c.Get("kb").(bool); ok {
		kb = b
	}
	return msgs, kb
}
