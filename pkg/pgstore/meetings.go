package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
)

func (s *Store) InsertMeeting(ctx context.Context, m models.Meeting) (models.Meeting, error) {
	var created models.Meeting
	query := `
INSERT INTO meetings (group_id, title, description, start_at, end_at, meeting_type, meeting_link, location,
                      is_recurring, recurring_pattern, recurring_day, recurring_until, parent_meeting_id, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING *;`
	err := s.write("insert_meeting", func() error {
		return sqlx.GetContext(ctx, s.ext, &created, query,
			m.GroupID, m.Title, m.Description, m.StartTime, m.EndTime, m.MeetingType, m.MeetingLink, m.Location,
			m.IsRecurring, m.RecurringPattern, m.RecurringDay, m.RecurringUntil, m.ParentMeetingID, m.CreatedBy)
	})
	if err != nil {
		return models.Meeting{}, fmt.Errorf("err inserting meeting: %w", err)
	}
	return created, nil
}

// CreateSeries inserts anchor, then the rows returned by children for the
// persisted anchor, all in one transaction. Nothing is kept if any insert
// fails.
func (s *Store) CreateSeries(ctx context.Context, anchor models.Meeting,
	children func(anchor models.Meeting) ([]models.Meeting, error)) (models.Meeting, []models.Meeting, error) {
	var (
		created     models.Meeting
		occurrences []models.Meeting
	)
	err := s.InTx(ctx, func(tx *Store) error {
		var err error
		if created, err = tx.InsertMeeting(ctx, anchor); err != nil {
			return err
		}
		pending, err := children(created)
		if err != nil {
			return err
		}
		occurrences = make([]models.Meeting, 0, len(pending))
		for _, child := range pending {
			inserted, err := tx.InsertMeeting(ctx, child)
			if err != nil {
				return fmt.Errorf("err inserting occurrence %s: %w", child.StartTime.Format(time.RFC3339), err)
			}
			occurrences = append(occurrences, inserted)
		}
		return nil
	})
	if err != nil {
		return models.Meeting{}, nil, err
	}
	return created, occurrences, nil
}

func (s *Store) GetMeeting(ctx context.Context, id int) (models.Meeting, error) {
	var meeting models.Meeting
	err := s.read(ctx, "get_meeting", func() error {
		return sqlx.GetContext(ctx, s.ext, &meeting, `SELECT * FROM meetings WHERE id = $1;`, id)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Meeting{}, models.ErrMeetingNotFound
	case err != nil:
		return models.Meeting{}, fmt.Errorf("err getting meeting %d: %w", id, err)
	}
	return meeting, nil
}

func (s *Store) ListMeetingsByGroup(ctx context.Context, groupID int) ([]models.Meeting, error) {
	return s.listMeetings(ctx, "list_group_meetings", `
SELECT * FROM meetings
WHERE group_id = $1
ORDER BY start_at, id;`, groupID)
}

// ListSeries returns the anchor (if it still exists) and every occurrence
// referencing it, ordered by start time.
func (s *Store) ListSeries(ctx context.Context, anchorID int) ([]models.Meeting, error) {
	return s.listMeetings(ctx, "list_series", `
SELECT * FROM meetings
WHERE id = $1 OR parent_meeting_id = $1
ORDER BY start_at, id;`, anchorID)
}

// UpcomingMeetingsForUser lists meetings of every group the user belongs to
// that start after now.
func (s *Store) UpcomingMeetingsForUser(ctx context.Context, userID int, now time.Time, limit int) ([]models.Meeting, error) {
	return s.listMeetings(ctx, "upcoming_user_meetings", `
SELECT m.* FROM meetings m
JOIN group_members gm ON gm.group_id = m.group_id
WHERE gm.user_id = $1 AND m.start_at > $2
ORDER BY m.start_at, m.id
LIMIT $3;`, userID, now, limit)
}

// MeetingsToRemind lists meetings starting in (from, to] that have not had a
// reminder yet.
func (s *Store) MeetingsToRemind(ctx context.Context, from, to time.Time) ([]models.Meeting, error) {
	return s.listMeetings(ctx, "meetings_to_remind", `
SELECT * FROM meetings
WHERE reminded_at IS NULL AND start_at > $1 AND start_at <= $2
ORDER BY start_at, id;`, from, to)
}

func (s *Store) listMeetings(ctx context.Context, method, query string, args ...interface{}) ([]models.Meeting, error) {
	meetings := make([]models.Meeting, 0)
	err := s.read(ctx, method, func() error {
		meetings = meetings[:0]
		return sqlx.SelectContext(ctx, s.ext, &meetings, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("err listing meetings: %w", err)
	}
	return meetings, nil
}

// UpdateMeeting writes the editable fields of m to the row with m.ID. Series
// fields are never touched.
func (s *Store) UpdateMeeting(ctx context.Context, m models.Meeting) (models.Meeting, error) {
	var updated models.Meeting
	query := `
UPDATE meetings
SET title = $2,
    description = $3,
    start_at = $4,
    end_at = $5,
    meeting_type = $6,
    meeting_link = $7,
    location = $8,
    reminded_at = $9,
    updated_at = now()
WHERE id = $1
RETURNING *;`
	err := s.write("update_meeting", func() error {
		return sqlx.GetContext(ctx, s.ext, &updated, query, m.ID,
			m.Title, m.Description, m.StartTime, m.EndTime, m.MeetingType, m.MeetingLink, m.Location, m.RemindedAt)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Meeting{}, models.ErrMeetingNotFound
	case err != nil:
		return models.Meeting{}, fmt.Errorf("err updating meeting %d: %w", m.ID, err)
	}
	return updated, nil
}

func (s *Store) DeleteMeeting(ctx context.Context, id int) (models.Meeting, error) {
	var deleted models.Meeting
	err := s.write("delete_meeting", func() error {
		return sqlx.GetContext(ctx, s.ext, &deleted, `DELETE FROM meetings WHERE id = $1 RETURNING *;`, id)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Meeting{}, models.ErrMeetingNotFound
	case err != nil:
		return models.Meeting{}, fmt.Errorf("err deleting meeting %d: %w", id, err)
	}
	return deleted, nil
}

func (s *Store) MarkReminded(ctx context.Context, id int, at time.Time) error {
	var n int64
	err := s.write("mark_reminded", func() error {
		res, err := s.ext.ExecContext(ctx, `UPDATE meetings SET reminded_at = $2 WHERE id = $1;`, id, at)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("err marking meeting %d reminded: %w", id, err)
	}
	if n == 0 {
		return models.ErrMeetingNotFound
	}
	return nil
}
