package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes one inline button: its label, the callback key it
// routes to and the payload carried back on tap.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// InlineButtonsRows lays the given rows out as an inline keyboard.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	grid := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			line = append(line, *markup.Data(btn.Text, btn.Unique, btn.Data).Inline())
		}
		grid = append(grid, line)
	}
	markup.InlineKeyboard = grid
	return markup
}
