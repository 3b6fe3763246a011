// Package calendar mirrors meeting lifecycle events into a shared Google
// Calendar so members can subscribe to it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type Calendar struct {
	log        *logrus.Entry
	srv        *calendar.Service
	calendarID string
}

// New authenticates with a service account key file. The calendar must be
// shared with the service account's address.
func New(ctx context.Context, log *logrus.Logger, credentialsFile, calendarID string) (*Calendar, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account key: %w", err)
	}
	config, err := google.JWTConfigFromJSON(b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account key: %w", err)
	}
	return NewWithClient(ctx, log, config.Client(ctx), calendarID)
}

func NewWithClient(ctx context.Context, log *logrus.Logger, client *http.Client, calendarID string, opts ...option.ClientOption) (*Calendar, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar client: %w", err)
	}
	return &Calendar{
		log:        log.WithField("module", "calendar"),
		srv:        srv,
		calendarID: calendarID,
	}, nil
}

func (c *Calendar) Name() string {
	return "google_calendar"
}

// Observe keeps the calendar event of a meeting in step with its row. A new
// series writes one event per stored occurrence, so each can later be edited
// or cancelled on its own. Reminders are not calendar changes and are ignored.
func (c *Calendar) Observe(ctx context.Context, event models.Event) error {
	switch event.Type {
	case models.EventNewMeeting:
		var errs []error
		for _, m := range append([]models.Meeting{event.Meeting}, event.Occurrences...) {
			if err := c.upsert(ctx, m); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case models.EventMeetingUpdated:
		return c.upsert(ctx, event.Meeting)
	case models.EventMeetingCancelled:
		return c.remove(ctx, event.MeetingID)
	}
	return nil
}

func (c *Calendar) upsert(ctx context.Context, m models.Meeting) error {
	ev := toEvent(m)
	_, err := c.srv.Events.Update(c.calendarID, ev.Id, ev).Context(ctx).Do()
	if isStatus(err, http.StatusNotFound) {
		_, err = c.srv.Events.Insert(c.calendarID, ev).Context(ctx).Do()
	}
	if err != nil {
		return fmt.Errorf("err writing calendar event for meeting %d: %w", m.ID, err)
	}
	c.log.Debugf("calendar event %s written", ev.Id)
	return nil
}

func (c *Calendar) remove(ctx context.Context, meetingID int) error {
	err := c.srv.Events.Delete(c.calendarID, EventID(meetingID)).Context(ctx).Do()
	if isStatus(err, http.StatusNotFound) || isStatus(err, http.StatusGone) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("err deleting calendar event for meeting %d: %w", meetingID, err)
	}
	return nil
}

// EventID derives the calendar event id from the meeting id. Google accepts
// client ids made of the characters a-v and 0-9.
func EventID(meetingID int) string {
	return fmt.Sprintf("ppmeeting%d", meetingID)
}

func toEvent(m models.Meeting) *calendar.Event {
	end := m.StartTime.Add(time.Hour)
	if m.EndTime != nil {
		end = *m.EndTime
	}
	ev := &calendar.Event{
		Id:      EventID(m.ID),
		Summary: m.Title,
		Start:   &calendar.EventDateTime{DateTime: m.StartTime.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	if m.Description != nil {
		ev.Description = *m.Description
	}
	switch {
	case m.Location != nil:
		ev.Location = *m.Location
	case m.MeetingLink != nil:
		ev.Location = *m.MeetingLink
	}
	return ev
}

func isStatus(err error, code int) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == code
}
