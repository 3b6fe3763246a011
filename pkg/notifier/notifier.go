// Package notifier fans meeting lifecycle events out to group members.
package notifier

import (
	"context"
	"fmt"

	"github.com/pershin-daniil/PrayerPipeline/pkg/metrics"
	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"github.com/sirupsen/logrus"
)

type Store interface {
	ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error)
	CreateNotifications(ctx context.Context, notifications []models.Notification) error
}

// Sender delivers one notification to one member over a push channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, recipient models.GroupMember, n models.Notification) error
}

// Observer receives every event once, regardless of recipients.
type Observer interface {
	Name() string
	Observe(ctx context.Context, event models.Event) error
}

type Dispatcher struct {
	log       *logrus.Entry
	store     Store
	senders   []Sender
	observers []Observer
}

func New(log *logrus.Logger, store Store, senders ...Sender) *Dispatcher {
	return &Dispatcher{
		log:     log.WithField("component", "notifier"),
		store:   store,
		senders: senders,
	}
}

// AddSender and AddObserver are meant for wiring before the first Notify.
func (d *Dispatcher) AddSender(sender Sender) {
	d.senders = append(d.senders, sender)
}

func (d *Dispatcher) AddObserver(o Observer) {
	d.observers = append(d.observers, o)
}

// Notify stores one notification per member of the event's group, except
// ExcludeUserID, then pushes them through every sender. Only failing to load
// members or store the rows is returned; channel failures are logged.
func (d *Dispatcher) Notify(ctx context.Context, event models.Event) error {
	for _, o := range d.observers {
		if err := o.Observe(ctx, event); err != nil {
			metrics.NotificationErrors.WithLabelValues(string(event.Type), o.Name()).Inc()
			d.log.Warnf("err during %s observing %s of meeting %d: %v", o.Name(), event.Type, event.MeetingID, err)
		}
	}

	members, err := d.store.ListMembers(ctx, event.GroupID)
	if err != nil {
		return fmt.Errorf("err getting members of group %d: %w", event.GroupID, err)
	}
	message := Message(event)
	recipients := make([]models.GroupMember, 0, len(members))
	notifications := make([]models.Notification, 0, len(members))
	for _, m := range members {
		if event.ExcludeUserID != nil && m.UserID == *event.ExcludeUserID {
			continue
		}
		recipients = append(recipients, m)
		notifications = append(notifications, models.Notification{
			UserID:    m.UserID,
			GroupID:   event.GroupID,
			MeetingID: event.MeetingID,
			Type:      event.Type,
			Message:   message,
		})
	}
	if len(notifications) == 0 {
		return nil
	}
	if err = d.store.CreateNotifications(ctx, notifications); err != nil {
		return fmt.Errorf("err storing %s notifications: %w", event.Type, err)
	}
	metrics.NotificationsSent.WithLabelValues(string(event.Type), "store").Add(float64(len(notifications)))

	for _, sender := range d.senders {
		for i, r := range recipients {
			if err = sender.Send(ctx, r, notifications[i]); err != nil {
				metrics.NotificationErrors.WithLabelValues(string(event.Type), sender.Name()).Inc()
				d.log.Warnf("err during sending %s to user %d via %s: %v", event.Type, r.UserID, sender.Name(), err)
				continue
			}
			metrics.NotificationsSent.WithLabelValues(string(event.Type), sender.Name()).Inc()
		}
	}
	return nil
}
