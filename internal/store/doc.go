// Package store holds the durable single-process state of the bot: booking
// dialogue sessions, confirmed bookings and the subscriber registry. Each
// store is a mutex-guarded in-memory structure written through to a JSON
// file on every mutation. Persistence failures are logged and absorbed:
// the in-memory copy keeps serving, so a broken disk degrades durability
// but never the conversation.
package store
