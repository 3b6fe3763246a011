package notifier

import (
	"fmt"
	"strings"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
)

const timeLayout = "Mon, Jan 2 2006 at 15:04 MST"

// Message renders the text shown to members for an event.
func Message(event models.Event) string {
	m := event.Meeting
	when := m.StartTime.Format(timeLayout)
	var b strings.Builder
	switch event.Type {
	case models.EventNewMeeting:
		fmt.Fprintf(&b, "New meeting %q on %s", m.Title, when)
		if m.IsRecurring && m.RecurringPattern != nil {
			fmt.Fprintf(&b, ", repeating %s", *m.RecurringPattern)
			if m.RecurringUntil != nil {
				fmt.Fprintf(&b, " until %s", m.RecurringUntil.Format("Jan 2 2006"))
			}
		}
	case models.EventMeetingUpdated:
		fmt.Fprintf(&b, "Meeting %q was updated, it is now on %s", m.Title, when)
	case models.EventMeetingCancelled:
		fmt.Fprintf(&b, "Meeting %q on %s was cancelled", m.Title, when)
	case models.EventMeetingReminder:
		fmt.Fprintf(&b, "Reminder: %q starts %s", m.Title, when)
	default:
		fmt.Fprintf(&b, "Meeting %q: %s", m.Title, event.Type)
	}
	if event.Type == models.EventMeetingCancelled {
		return b.String()
	}
	switch {
	case m.MeetingLink != nil:
		fmt.Fprintf(&b, " (%s)", *m.MeetingLink)
	case m.Location != nil:
		fmt.Fprintf(&b, " at %s", *m.Location)
	}
	return b.String()
}
