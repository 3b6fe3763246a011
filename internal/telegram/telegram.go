// Package telegram runs the bot members use to link their account and see
// upcoming meetings, and pushes notifications to linked chats.
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"
)

type Telegram struct {
	log *logrus.Entry
	bot *tele.Bot
	app App
}

type App interface {
	LinkTelegram(ctx context.Context, code string, chatID int64) (models.User, error)
	UpcomingForTelegram(ctx context.Context, chatID int64) ([]models.Meeting, error)
}

// Messenger is the part of *tele.Bot the notifier needs.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier delivers notifications to members who linked a Telegram chat.
type Notifier struct {
	log *logrus.Entry
	bot Messenger
}

func NewNotifier(log *logrus.Logger, bot Messenger) *Notifier {
	return &Notifier{
		log: log.WithField("component", "telegram_notifier"),
		bot: bot,
	}
}

func New(log *logrus.Logger, bot *tele.Bot, app App) *Telegram {
	t := Telegram{
		log: log.WithField("component", "telegram"),
		bot: bot,
		app: app,
	}
	t.initButtons()
	t.initHandlers()
	return &t
}

func NewBot(token string) (*tele.Bot, error) {
	config := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(config)
	if err != nil {
		return nil, fmt.Errorf("new bot failed: %w", err)
	}
	return b, nil
}

func (n *Notifier) Name() string {
	return "telegram"
}

// Send skips members without a linked chat silently; they still get the
// stored notification.
func (n *Notifier) Send(_ context.Context, recipient models.GroupMember, msg models.Notification) error {
	if recipient.TelegramID == nil {
		return nil
	}
	if _, err := n.bot.Send(tele.ChatID(*recipient.TelegramID), msg.Message); err != nil {
		return fmt.Errorf("tg send message failed: %w", err)
	}
	return nil
}

func (t *Telegram) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		t.bot.Stop()
	}()
	t.log.Infof("Starting telegram bot as %v", t.bot.Me.Username)
	t.bot.Start()
}
