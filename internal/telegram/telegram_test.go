package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pershin-daniil/PrayerPipeline/pkg/logger"
	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

type fakeMessenger struct {
	sent []string
	to   []string
	err  error
}

func (f *fakeMessenger) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.to = append(f.to, to.Recipient())
	f.sent = append(f.sent, what.(string))
	return &tele.Message{}, nil
}

func TestNotifierSend(t *testing.T) {
	chat := int64(4242)
	msg := models.Notification{Message: "Reminder: \"Prayer\" starts soon"}

	t.Run("linked member", func(t *testing.T) {
		bot := &fakeMessenger{}
		n := NewNotifier(logger.NewLogger(), bot)
		require.NoError(t, n.Send(context.Background(), models.GroupMember{UserID: 1, TelegramID: &chat}, msg))
		require.Equal(t, []string{"4242"}, bot.to)
		require.Equal(t, []string{msg.Message}, bot.sent)
	})

	t.Run("member without chat is skipped", func(t *testing.T) {
		bot := &fakeMessenger{}
		n := NewNotifier(logger.NewLogger(), bot)
		require.NoError(t, n.Send(context.Background(), models.GroupMember{UserID: 2}, msg))
		require.Empty(t, bot.sent)
	})

	t.Run("send failure is returned", func(t *testing.T) {
		bot := &fakeMessenger{err: errors.New("blocked by user")}
		n := NewNotifier(logger.NewLogger(), bot)
		err := n.Send(context.Background(), models.GroupMember{UserID: 3, TelegramID: &chat}, msg)
		require.ErrorContains(t, err, "blocked by user")
	})
}

func TestFormatMeetings(t *testing.T) {
	require.Equal(t, "No upcoming meetings.", formatMeetings(nil))

	link := "https://meet.google.com/abc"
	room := "Chapel"
	got := formatMeetings([]models.Meeting{
		{Title: "Online prayer", StartTime: time.Date(2024, time.January, 8, 18, 0, 0, 0, time.UTC), MeetingLink: &link},
		{Title: "Vigil", StartTime: time.Date(2024, time.January, 9, 21, 30, 0, 0, time.UTC), Location: &room},
	})
	require.Equal(t, "Upcoming meetings:"+
		"\n• Online prayer, Mon, Jan 8 at 18:00 UTC (https://meet.google.com/abc)"+
		"\n• Vigil, Tue, Jan 9 at 21:30 UTC at Chapel", got)
}
