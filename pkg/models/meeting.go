package models

import (
	"time"
)

type MeetingType string

const (
	MeetingTypeZoom       MeetingType = "zoom"
	MeetingTypeGoogleMeet MeetingType = "google_meet"
	MeetingTypePhysical   MeetingType = "physical"
)

func (t MeetingType) Valid() bool {
	switch t {
	case MeetingTypeZoom, MeetingTypeGoogleMeet, MeetingTypePhysical:
		return true
	}
	return false
}

type MeetingStatus string

const (
	StatusScheduled MeetingStatus = "scheduled"
	StatusCompleted MeetingStatus = "completed"
)

// MeetingRequest is the body of create and update calls. Pointer fields are
// optional; on update only non-nil fields are applied.
type MeetingRequest struct {
	Title            *string      `json:"title" validate:"omitempty,min=1,max=200"`
	Description      *string      `json:"description" validate:"omitempty,max=5000"`
	MeetingType      *MeetingType `json:"meetingType" validate:"omitempty,oneof=zoom google_meet physical"`
	MeetingLink      *string      `json:"meetingLink" validate:"omitempty,url"`
	Location         *string      `json:"location" validate:"omitempty,max=500"`
	StartTime        *time.Time   `json:"startTime"`
	EndTime          *time.Time   `json:"endTime"`
	IsRecurring      bool         `json:"isRecurring"`
	RecurringPattern *string      `json:"recurringPattern" validate:"omitempty,oneof=daily weekly biweekly monthly"`
	RecurringDay     *int         `json:"recurringDay" validate:"omitempty,min=0,max=31"`
	RecurringUntil   *FlexTime    `json:"recurringUntil"`
}

type Meeting struct {
	ID               int           `json:"id" db:"id"`
	GroupID          int           `json:"groupId" db:"group_id"`
	Title            string        `json:"title" db:"title"`
	Description      *string       `json:"description,omitempty" db:"description"`
	StartTime        time.Time     `json:"startTime" db:"start_at"`
	EndTime          *time.Time    `json:"endTime,omitempty" db:"end_at"`
	MeetingType      MeetingType   `json:"meetingType" db:"meeting_type"`
	MeetingLink      *string       `json:"meetingLink,omitempty" db:"meeting_link"`
	Location         *string       `json:"location,omitempty" db:"location"`
	IsRecurring      bool          `json:"isRecurring" db:"is_recurring"`
	RecurringPattern *string       `json:"recurringPattern,omitempty" db:"recurring_pattern"`
	RecurringDay     *int          `json:"recurringDay,omitempty" db:"recurring_day"`
	RecurringUntil   *time.Time    `json:"recurringUntil,omitempty" db:"recurring_until"`
	ParentMeetingID  *int          `json:"parentMeetingId" db:"parent_meeting_id"`
	CreatedBy        int           `json:"createdBy" db:"created_by"`
	RemindedAt       *time.Time    `json:"-" db:"reminded_at"`
	CreatedAt        time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time     `json:"updatedAt" db:"updated_at"`
	Status           MeetingStatus `json:"status" db:"-"`
}

// IsUpcoming is the single predicate deciding whether a meeting is still
// scheduled. Nothing stores the status; it is always derived from StartTime.
func (m Meeting) IsUpcoming(now time.Time) bool {
	return m.StartTime.After(now)
}

func (m Meeting) StatusAt(now time.Time) MeetingStatus {
	if m.IsUpcoming(now) {
		return StatusScheduled
	}
	return StatusCompleted
}

// WithStatus returns a copy of m with Status filled for the given instant.
func (m Meeting) WithStatus(now time.Time) Meeting {
	m.Status = m.StatusAt(now)
	return m
}

// SeriesID returns the id of the anchor of the series m belongs to.
func (m Meeting) SeriesID() int {
	if m.ParentMeetingID != nil {
		return *m.ParentMeetingID
	}
	return m.ID
}

func (m Meeting) IsAnchor() bool {
	return m.ParentMeetingID == nil
}

type MeetingFilter string

const (
	FilterAll      MeetingFilter = "all"
	FilterUpcoming MeetingFilter = "upcoming"
	FilterPast     MeetingFilter = "past"
)

// CreatedMeeting is returned by a create call: the anchor row plus any
// occurrences materialized from its recurrence rule.
type CreatedMeeting struct {
	Meeting
	Occurrences []Meeting `json:"occurrences"`
}
