// Package dialog drives the booking conversation: a per-chat step machine
// from route name through date, time, fare prediction, bus selection and
// confirmation. It consumes plain events (TextMessage, Selection) and talks
// back through the Messenger interface, so it carries no Telegram types and
// tests run against a recorder.
package dialog
