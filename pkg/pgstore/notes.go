package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
)

func (s *Store) CreateNote(ctx context.Context, note models.MeetingNote) (models.MeetingNote, error) {
	var created models.MeetingNote
	err := s.write("create_note", func() error {
		return sqlx.GetContext(ctx, s.ext, &created, `
INSERT INTO meeting_notes (meeting_id, content, created_by)
VALUES ($1, $2, $3)
RETURNING *;`, note.MeetingID, note.Content, note.CreatedBy)
	})
	if pgCode(err) == pgForeignKeyViolation {
		return models.MeetingNote{}, models.ErrMeetingNotFound
	}
	if err != nil {
		return models.MeetingNote{}, fmt.Errorf("err creating note: %w", err)
	}
	return created, nil
}

func (s *Store) GetNote(ctx context.Context, id int) (models.MeetingNote, error) {
	var note models.MeetingNote
	err := s.read(ctx, "get_note", func() error {
		return sqlx.GetContext(ctx, s.ext, &note, `SELECT * FROM meeting_notes WHERE id = $1;`, id)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.MeetingNote{}, models.ErrNoteNotFound
	case err != nil:
		return models.MeetingNote{}, fmt.Errorf("err getting note %d: %w", id, err)
	}
	return note, nil
}

func (s *Store) ListNotes(ctx context.Context, meetingID int) ([]models.MeetingNote, error) {
	notes := make([]models.MeetingNote, 0)
	err := s.read(ctx, "list_notes", func() error {
		notes = notes[:0]
		return sqlx.SelectContext(ctx, s.ext, &notes, `
SELECT * FROM meeting_notes
WHERE meeting_id = $1
ORDER BY created_at, id;`, meetingID)
	})
	if err != nil {
		return nil, fmt.Errorf("err listing notes of meeting %d: %w", meetingID, err)
	}
	return notes, nil
}

func (s *Store) UpdateNote(ctx context.Context, id int, content string) (models.MeetingNote, error) {
	var updated models.MeetingNote
	err := s.write("update_note", func() error {
		return sqlx.GetContext(ctx, s.ext, &updated, `
UPDATE meeting_notes
SET content = $2,
    updated_at = now()
WHERE id = $1
RETURNING *;`, id, content)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.MeetingNote{}, models.ErrNoteNotFound
	case err != nil:
		return models.MeetingNote{}, fmt.Errorf("err updating note %d: %w", id, err)
	}
	return updated, nil
}

func (s *Store) DeleteNote(ctx context.Context, id int) error {
	var deletedID int
	err := s.write("delete_note", func() error {
		return sqlx.GetContext(ctx, s.ext, &deletedID, `DELETE FROM meeting_notes WHERE id = $1 RETURNING id;`, id)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.ErrNoteNotFound
	case err != nil:
		return fmt.Errorf("err deleting note %d: %w", id, err)
	}
	return nil
}

func (s *Store) CreatePrayerRequest(ctx context.Context, pr models.PrayerRequest) (models.PrayerRequest, error) {
	var created models.PrayerRequest
	err := s.write("create_prayer_request", func() error {
		return sqlx.GetContext(ctx, s.ext, &created, `
INSERT INTO prayer_requests (group_id, title, content, created_by)
VALUES ($1, $2, $3, $4)
RETURNING *;`, pr.GroupID, pr.Title, pr.Content, pr.CreatedBy)
	})
	if err != nil {
		return models.PrayerRequest{}, fmt.Errorf("err creating prayer request: %w", err)
	}
	return created, nil
}
