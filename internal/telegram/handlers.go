package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	tele "gopkg.in/telebot.v3"
)

const (
	cmdStart    = "/start"
	cmdUpcoming = "/upcoming"
)

const timeLayout = "Mon, Jan 2 at 15:04 MST"

func (t *Telegram) initHandlers() {
	t.bot.Handle(cmdStart, t.startHandler)
	t.bot.Handle(cmdUpcoming, t.upcomingHandler)
	t.bot.Handle(&upcomingBtn, t.upcomingHandler)
	t.bot.Handle(tele.OnText, t.textHandler)
}

// startHandler links the chat when /start carries a link code, which is what
// the deep link from the web app sends.
func (t *Telegram) startHandler(ctx tele.Context) error {
	code := strings.TrimSpace(ctx.Message().Payload)
	if code == "" {
		return ctx.Send("Open the link from your Prayer Pipeline profile to connect this chat.")
	}
	user, err := t.app.LinkTelegram(context.Background(), code, ctx.Chat().ID)
	switch {
	case errors.Is(err, models.ErrLinkCodeInvalid):
		return ctx.Send("This link has expired. Request a new one from your profile.")
	case err != nil:
		t.log.Warnf("err during linking chat %d: %v", ctx.Chat().ID, err)
		return ctx.Send("Something went wrong, please try again later.")
	}
	return ctx.Send(fmt.Sprintf("Hi %s! You will get meeting notifications here.", user.FirstName), menu)
}

func (t *Telegram) upcomingHandler(ctx tele.Context) error {
	meetings, err := t.app.UpcomingForTelegram(context.Background(), ctx.Chat().ID)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		return ctx.Send("This chat is not linked to an account yet.")
	case err != nil:
		t.log.Warnf("err during listing meetings for chat %d: %v", ctx.Chat().ID, err)
		return ctx.Send("Something went wrong, please try again later.")
	}
	msg := formatMeetings(meetings)
	if ctx.Callback() != nil {
		return ctx.Edit(msg, menu)
	}
	return ctx.Send(msg, menu)
}

func (t *Telegram) textHandler(ctx tele.Context) error {
	return ctx.Send("Use /upcoming to see your next meetings.", menu)
}

func formatMeetings(meetings []models.Meeting) string {
	if len(meetings) == 0 {
		return "No upcoming meetings."
	}
	var b strings.Builder
	b.WriteString("Upcoming meetings:")
	for _, m := range meetings {
		fmt.Fprintf(&b, "\n• %s, %s", m.Title, m.StartTime.Format(timeLayout))
		switch {
		case m.MeetingLink != nil:
			fmt.Fprintf(&b, " (%s)", *m.MeetingLink)
		case m.Location != nil:
			fmt.Fprintf(&b, " at %s", *m.Location)
		}
	}
	return b.String()
}
