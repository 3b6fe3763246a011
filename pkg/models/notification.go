package models

import "time"

type EventType string

const (
	EventNewMeeting       EventType = "new_meeting"
	EventMeetingUpdated   EventType = "meeting_updated"
	EventMeetingCancelled EventType = "meeting_cancelled"
	EventMeetingReminder  EventType = "meeting_reminder"
)

// Event is handed to the notification dispatcher after a meeting mutation.
// Meeting carries a snapshot so cancelled meetings can still be described.
// Occurrences is set on new_meeting for a recurring series: members hear about
// the series once, but every stored row is listed.
type Event struct {
	Type          EventType
	GroupID       int
	MeetingID     int
	ExcludeUserID *int
	Meeting       Meeting
	Occurrences   []Meeting
}

type Notification struct {
	ID        int        `json:"id" db:"id"`
	UserID    int        `json:"userId" db:"user_id"`
	GroupID   int        `json:"groupId" db:"group_id"`
	MeetingID int        `json:"meetingId" db:"meeting_id"`
	Type      EventType  `json:"type" db:"type"`
	Message   string     `json:"message" db:"message"`
	ReadAt    *time.Time `json:"readAt,omitempty" db:"read_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}
