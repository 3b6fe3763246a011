package telegram

import tele "gopkg.in/telebot.v3"

func (t *Telegram) initButtons() {
	menu.Inline(
		menu.Row(upcomingBtn))
}

var (
	menu        = &tele.ReplyMarkup{}
	upcomingBtn = menu.Data("Upcoming meetings", "upcoming")
)
