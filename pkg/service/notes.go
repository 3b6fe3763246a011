package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
)

func (s *ScheduleService) CreateNote(ctx context.Context, actorID, meetingID int, req models.NoteRequest) (models.MeetingNote, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		vErr := models.NewValidationError()
		vErr.Add("content", "is required")
		return models.MeetingNote{}, vErr
	}
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return models.MeetingNote{}, fmt.Errorf("err getting meeting (id %d) from store: %w", meetingID, err)
	}
	if err = s.canManage(ctx, meeting, actorID); err != nil {
		return models.MeetingNote{}, err
	}
	note, err := s.store.CreateNote(ctx, models.MeetingNote{
		MeetingID: meetingID,
		Content:   content,
		CreatedBy: actorID,
	})
	if err != nil {
		return models.MeetingNote{}, fmt.Errorf("err creating note: %w", err)
	}
	return note, nil
}

// ListNotes is open to every member of the meeting's group.
func (s *ScheduleService) ListNotes(ctx context.Context, actorID, meetingID int) ([]models.MeetingNote, error) {
	if _, err := s.GetMeeting(ctx, actorID, meetingID); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, meetingID)
}

func (s *ScheduleService) UpdateNote(ctx context.Context, actorID, noteID int, req models.NoteRequest) (models.MeetingNote, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		vErr := models.NewValidationError()
		vErr.Add("content", "is required")
		return models.MeetingNote{}, vErr
	}
	if _, _, err := s.noteForAuthor(ctx, actorID, noteID); err != nil {
		return models.MeetingNote{}, err
	}
	return s.store.UpdateNote(ctx, noteID, content)
}

func (s *ScheduleService) DeleteNote(ctx context.Context, actorID, noteID int) error {
	if _, _, err := s.noteForAuthor(ctx, actorID, noteID); err != nil {
		return err
	}
	return s.store.DeleteNote(ctx, noteID)
}

// ExportNote copies a note into a new prayer request of the meeting's group.
// The copy keeps no link to the note.
func (s *ScheduleService) ExportNote(ctx context.Context, actorID, noteID int, req models.ExportRequest) (models.PrayerRequest, error) {
	note, meeting, err := s.noteForAuthor(ctx, actorID, noteID)
	if err != nil {
		return models.PrayerRequest{}, err
	}
	title := fmt.Sprintf("%s (%s)", meeting.Title, meeting.StartTime.Format("Jan 2, 2006"))
	if t := trimmed(req.Title); t != nil {
		title = *t
	}
	pr, err := s.store.CreatePrayerRequest(ctx, models.PrayerRequest{
		GroupID:   meeting.GroupID,
		Title:     title,
		Content:   note.Content,
		CreatedBy: actorID,
	})
	if err != nil {
		return models.PrayerRequest{}, fmt.Errorf("err exporting note %d: %w", noteID, err)
	}
	return pr, nil
}

func (s *ScheduleService) noteForAuthor(ctx context.Context, actorID, noteID int) (models.MeetingNote, models.Meeting, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return models.MeetingNote{}, models.Meeting{}, fmt.Errorf("err getting note (id %d) from store: %w", noteID, err)
	}
	meeting, err := s.store.GetMeeting(ctx, note.MeetingID)
	if err != nil {
		return models.MeetingNote{}, models.Meeting{}, fmt.Errorf("err getting meeting (id %d) from store: %w", note.MeetingID, err)
	}
	if err = s.canManage(ctx, meeting, actorID); err != nil {
		return models.MeetingNote{}, models.Meeting{}, err
	}
	return note, meeting, nil
}
