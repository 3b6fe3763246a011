package notifier

import (
	"context"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"github.com/sirupsen/logrus"
)

// LogSender writes every notification to the log. It is the fallback
// channel when no push channel is configured.
type LogSender struct {
	log *logrus.Entry
}

func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{
		log: log.WithField("component", "notifier"),
	}
}

func (n *LogSender) Name() string {
	return "log"
}

func (n *LogSender) Send(_ context.Context, recipient models.GroupMember, msg models.Notification) error {
	n.log.Infof("notifying user %d: %s", recipient.UserID, msg.Message)
	return nil
}
