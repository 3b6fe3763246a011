// Package worker sends meeting reminders shortly before meetings start.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Store interface {
	MeetingsToRemind(ctx context.Context, from, to time.Time) ([]models.Meeting, error)
	MarkReminded(ctx context.Context, id int, at time.Time) error
}

type Notifier interface {
	Notify(ctx context.Context, event models.Event) error
}

type Worker struct {
	log      *logrus.Entry
	store    Store
	notifier Notifier
	window   time.Duration
	now      func() time.Time
}

func New(log *logrus.Logger, store Store, notifier Notifier, window time.Duration) *Worker {
	return &Worker{
		log:      log.WithField("component", "worker"),
		store:    store,
		notifier: notifier,
		window:   window,
		now:      time.Now,
	}
}

// Run schedules SendReminders with the cron spec and blocks until ctx is
// done. A run still in progress is allowed to finish.
func (w *Worker) Run(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if err := w.SendReminders(ctx); err != nil {
			w.log.Warnf("err during sending reminders: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("err scheduling reminders %q: %w", spec, err)
	}
	c.Start()
	w.log.Infof("reminder worker started (%s, window %s)", spec, w.window)
	<-ctx.Done()
	<-c.Stop().Done()
	w.log.Info("reminder worker stopped")
	return nil
}

// SendReminders emits a meeting_reminder for every meeting starting within
// the window and marks it so it is reminded once. A failure on one meeting
// does not stop the others; the count of failures is returned as an error.
func (w *Worker) SendReminders(ctx context.Context) error {
	now := w.now()
	meetings, err := w.store.MeetingsToRemind(ctx, now, now.Add(w.window))
	if err != nil {
		return fmt.Errorf("worker send reminders failed: %w", err)
	}
	failed := 0
	for _, m := range meetings {
		if err = w.notifier.Notify(ctx, models.Event{
			Type:      models.EventMeetingReminder,
			GroupID:   m.GroupID,
			MeetingID: m.ID,
			Meeting:   m,
		}); err != nil {
			failed++
			w.log.Warnf("err during reminding meeting %d: %v", m.ID, err)
			continue
		}
		if err = w.store.MarkReminded(ctx, m.ID, now); err != nil {
			failed++
			w.log.Warnf("err during marking meeting %d reminded: %v", m.ID, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("worker send reminders failed for %d of %d meetings", failed, len(meetings))
	}
	return nil
}
