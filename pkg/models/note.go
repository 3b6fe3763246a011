package models

import "time"

type NoteRequest struct {
	Content string `json:"content" validate:"required,min=1,max=20000"`
}

type MeetingNote struct {
	ID        int       `json:"id" db:"id"`
	MeetingID int       `json:"meetingId" db:"meeting_id"`
	Content   string    `json:"content" db:"content"`
	CreatedBy int       `json:"createdBy" db:"created_by"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type ExportRequest struct {
	Title *string `json:"title" validate:"omitempty,min=1,max=200"`
}

// PrayerRequest rows seeded from a note keep no reference back to it.
type PrayerRequest struct {
	ID        int       `json:"id" db:"id"`
	GroupID   int       `json:"groupId" db:"group_id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	CreatedBy int       `json:"createdBy" db:"created_by"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
