// Package keyboard builds inline keyboards.
package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/menu"
)

// MaxCallbackData is Telegram's limit on callback_data in bytes.
const MaxCallbackData = 64

// InlineBtn describes one inline button. With an empty Unique, Data is sent
// back verbatim as callback_data; otherwise telebot's unique encoding is used.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			if btn.Unique == "" {
				r = append(r, tele.InlineButton{Text: btn.Text, Data: btn.Data})
				continue
			}
			r = append(r, *markup.Data(btn.Text, btn.Unique, btn.Data).Inline())
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// FromMenu converts a menu keyboard. Button payloads become raw callback data.
func FromMenu(kb [][]menu.Button) *tele.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]InlineBtn, 0, len(kb))
	for _, row := range kb {
		r := make([]InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, InlineBtn{Text: b.Label, Data: b.Payload})
		}
		rows = append(rows, r)
	}
	return InlineButtonsRows(rows...)
}
