package dialog

import "context"

// Callback keys understood by HandleSelection. The transport layer registers
// one callback route per key and forwards taps as Selection events.
const (
	KeySelectRoute   = "select_route"
	KeySelectAge     = "select_age"
	KeySelectTraffic = "select_traffic"
	KeySelectBus     = "select_bus"
	KeyConfirm       = "confirm_booking"
	KeyCancel        = "cancel_flow"
)

// TextMessage is an inbound plain-text update.
type TextMessage struct {
	ChatID    int64
	Text      string
	Username  string
	FirstName string
}

// Selection is an inbound inline-keyboard tap.
type Selection struct {
	ChatID    int64
	Key       string
	Payload   string
	Username  string
	FirstName string
}

// Choice is one inline-keyboard option offered to the rider.
type Choice struct {
	Label   string
	Key     string
	Payload string
}

// Messenger delivers dialogue output. The Telegram adapter lives in the app
// layer; tests substitute a recorder.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMarkdown(ctx context.Context, chatID int64, text string) error
	SendChoices(ctx context.Context, chatID int64, text string, rows [][]Choice) error
}
