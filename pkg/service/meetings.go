package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pershin-daniil/PrayerPipeline/pkg/metrics"
	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"github.com/pershin-daniil/PrayerPipeline/pkg/recurrence"
)

// CreateMeeting validates req and stores either a single meeting or an
// anchor with every occurrence its rule produces. The series is written in
// one transaction and announced with a single new_meeting event.
func (s *ScheduleService) CreateMeeting(ctx context.Context, actorID, groupID int, req models.MeetingRequest) (models.CreatedMeeting, error) {
	if _, err := s.membership(ctx, groupID, actorID); err != nil {
		return models.CreatedMeeting{}, err
	}
	now := s.now()
	anchor, err := s.newMeeting(actorID, groupID, req, now)
	if err != nil {
		return models.CreatedMeeting{}, err
	}
	loc := anchor.StartTime.Location()
	created, occurrences, err := s.store.CreateSeries(ctx, anchor, func(a models.Meeting) ([]models.Meeting, error) {
		if !a.IsRecurring {
			return nil, nil
		}
		// the store may hand back times in another zone; the series keeps
		// the wall clock the caller asked for
		a.StartTime = a.StartTime.In(loc)
		return occurrencesOf(a)
	})
	if err != nil {
		return models.CreatedMeeting{}, fmt.Errorf("err creating meeting: %w", err)
	}
	metrics.MeetingsCreated.WithLabelValues("anchor").Inc()
	metrics.MeetingsCreated.WithLabelValues("occurrence").Add(float64(len(occurrences)))
	s.log.Debugf("meeting %d created in group %d with %d occurrences", created.ID, groupID, len(occurrences))

	s.notify(models.Event{
		Type:          models.EventNewMeeting,
		GroupID:       groupID,
		MeetingID:     created.ID,
		ExcludeUserID: &actorID,
		Meeting:       created,
		Occurrences:   append([]models.Meeting(nil), occurrences...),
	})

	for i := range occurrences {
		occurrences[i] = occurrences[i].WithStatus(now)
	}
	return models.CreatedMeeting{Meeting: created.WithStatus(now), Occurrences: occurrences}, nil
}

// occurrencesOf builds the child rows of anchor from its own rule fields.
func occurrencesOf(anchor models.Meeting) ([]models.Meeting, error) {
	seq, err := recurrence.Expand(anchor.StartTime, ruleOf(anchor))
	if err != nil {
		return nil, err
	}
	var duration time.Duration
	if anchor.EndTime != nil {
		duration = anchor.EndTime.Sub(anchor.StartTime)
	}
	parentID := anchor.ID
	var children []models.Meeting
	for start, ok := seq.Next(); ok; start, ok = seq.Next() {
		child := models.Meeting{
			GroupID:          anchor.GroupID,
			Title:            anchor.Title,
			Description:      anchor.Description,
			StartTime:        start,
			MeetingType:      anchor.MeetingType,
			MeetingLink:      anchor.MeetingLink,
			Location:         anchor.Location,
			IsRecurring:      true,
			RecurringPattern: anchor.RecurringPattern,
			RecurringDay:     anchor.RecurringDay,
			RecurringUntil:   anchor.RecurringUntil,
			ParentMeetingID:  &parentID,
			CreatedBy:        anchor.CreatedBy,
		}
		if anchor.EndTime != nil {
			end := start.Add(duration)
			child.EndTime = &end
		}
		children = append(children, child)
	}
	return children, nil
}

func ruleOf(m models.Meeting) recurrence.Rule {
	rule := recurrence.Rule{Day: m.RecurringDay, Until: m.RecurringUntil}
	if m.RecurringPattern != nil {
		rule.Pattern = recurrence.Pattern(*m.RecurringPattern)
	}
	return rule
}

// newMeeting turns a create request into an anchor row. Every check happens
// here, before anything is written.
func (s *ScheduleService) newMeeting(actorID, groupID int, req models.MeetingRequest, now time.Time) (models.Meeting, error) {
	vErr := models.NewValidationError()
	m := models.Meeting{
		GroupID:     groupID,
		CreatedBy:   actorID,
		Description: trimmed(req.Description),
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		vErr.Add("title", "is required")
	} else {
		m.Title = strings.TrimSpace(*req.Title)
	}
	if req.MeetingType == nil {
		vErr.Add("meetingType", "is required")
	} else {
		m.MeetingType = *req.MeetingType
	}
	if req.StartTime == nil {
		vErr.Add("startTime", "is required")
	} else {
		m.StartTime = *req.StartTime
		if !m.StartTime.After(now) {
			vErr.Add("startTime", "must be in the future")
		}
	}
	m.EndTime = req.EndTime
	m.MeetingLink = trimmed(req.MeetingLink)
	m.Location = trimmed(req.Location)
	validateShape(&m, vErr)

	if req.IsRecurring && req.StartTime != nil {
		s.applyRule(&m, req, vErr)
	} else if req.IsRecurring {
		vErr.Add("recurringPattern", "requires a start time")
	}
	if err := vErr.Err(); err != nil {
		return models.Meeting{}, err
	}
	return m, nil
}

// applyRule fills the recurrence fields of an anchor. A non-recurring meeting
// never reaches here, so its rule fields stay unset.
func (s *ScheduleService) applyRule(m *models.Meeting, req models.MeetingRequest, vErr *models.ValidationError) {
	if req.RecurringPattern == nil {
		vErr.Add("recurringPattern", "is required for a recurring meeting")
		return
	}
	pattern := recurrence.Pattern(*req.RecurringPattern)
	if !pattern.Valid() {
		vErr.Add("recurringPattern", "must be one of daily, weekly, biweekly, monthly")
		return
	}
	day := req.RecurringDay
	switch pattern {
	case recurrence.Weekly, recurrence.Biweekly:
		wd := int(m.StartTime.Weekday())
		switch {
		case day == nil:
			day = &wd
		case *day < 0 || *day > 6:
			vErr.Add("recurringDay", "must be a day of week between 0 and 6")
		case *day != wd:
			vErr.Add("recurringDay", fmt.Sprintf("must match the weekday of the start time (%d)", wd))
		}
	case recurrence.Monthly:
		if day == nil {
			vErr.Add("recurringDay", "is required for a monthly meeting")
		} else if *day < 1 || *day > 31 {
			vErr.Add("recurringDay", "must be a day of month between 1 and 31")
		}
	case recurrence.Daily:
		day = nil
	}
	until := req.RecurringUntil.Ptr()
	if until == nil {
		u := m.StartTime.Add(recurrence.DefaultSpan)
		until = &u
	}
	if !until.After(m.StartTime) {
		vErr.Add("recurringUntil", "must be after the start time")
	} else if until.Sub(m.StartTime) > s.maxSpan {
		vErr.Add("recurringUntil", fmt.Sprintf("must be within %d days of the start time", int(s.maxSpan.Hours()/24)))
	}
	if vErr.HasErrors() {
		return
	}
	p := string(pattern)
	m.IsRecurring = true
	m.RecurringPattern = &p
	m.RecurringDay = day
	m.RecurringUntil = until
	if err := ruleOf(*m).Validate(m.StartTime); err != nil {
		vErr.Add("recurringPattern", err.Error())
	}
}

// validateShape checks the fields shared by create and update: the time
// range and the link or location the meeting type needs. The field not used
// by the type is cleared.
func validateShape(m *models.Meeting, vErr *models.ValidationError) {
	if m.EndTime != nil && !m.StartTime.IsZero() && !m.EndTime.After(m.StartTime) {
		vErr.Add("endTime", "must be after the start time")
	}
	if m.MeetingType == "" {
		return
	}
	if !m.MeetingType.Valid() {
		vErr.Add("meetingType", "must be one of zoom, google_meet, physical")
		return
	}
	if m.MeetingType == models.MeetingTypePhysical {
		if m.Location == nil {
			vErr.Add("location", "is required for a physical meeting")
		}
		m.MeetingLink = nil
		return
	}
	if m.MeetingLink == nil {
		vErr.Add("meetingLink", "is required for an online meeting")
	}
	m.Location = nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func (s *ScheduleService) GetMeeting(ctx context.Context, actorID, id int) (models.Meeting, error) {
	m, err := s.store.GetMeeting(ctx, id)
	if err != nil {
		return models.Meeting{}, fmt.Errorf("err getting meeting (id %d) from store: %w", id, err)
	}
	if _, err = s.membership(ctx, m.GroupID, actorID); err != nil {
		return models.Meeting{}, err
	}
	return m.WithStatus(s.now()), nil
}

// ListGroupMeetings returns upcoming meetings soonest first and past meetings
// most recent first. FilterAll keeps store order.
func (s *ScheduleService) ListGroupMeetings(ctx context.Context, actorID, groupID int, filter models.MeetingFilter) ([]models.Meeting, error) {
	if _, err := s.membership(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	meetings, err := s.store.ListMeetingsByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("err listing meetings of group %d: %w", groupID, err)
	}
	now := s.now()
	result := make([]models.Meeting, 0, len(meetings))
	for _, m := range meetings {
		upcoming := m.IsUpcoming(now)
		if (filter == models.FilterUpcoming && !upcoming) || (filter == models.FilterPast && upcoming) {
			continue
		}
		result = append(result, m.WithStatus(now))
	}
	switch filter {
	case models.FilterUpcoming:
		sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	case models.FilterPast:
		sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime.After(result[j].StartTime) })
	}
	return result, nil
}

// ListSeries returns every stored meeting of the series id belongs to.
func (s *ScheduleService) ListSeries(ctx context.Context, actorID, id int) ([]models.Meeting, error) {
	m, err := s.GetMeeting(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	series, err := s.store.ListSeries(ctx, m.SeriesID())
	if err != nil {
		return nil, fmt.Errorf("err listing series %d: %w", m.SeriesID(), err)
	}
	now := s.now()
	for i := range series {
		series[i] = series[i].WithStatus(now)
	}
	return series, nil
}

// UpdateMeeting edits exactly one occurrence. Siblings in the same series and
// the recurrence rule are left as they are.
func (s *ScheduleService) UpdateMeeting(ctx context.Context, actorID, id int, req models.MeetingRequest) (models.Meeting, error) {
	existing, err := s.store.GetMeeting(ctx, id)
	if err != nil {
		return models.Meeting{}, fmt.Errorf("err updating meeting (id %d) from store: %w", id, err)
	}
	if err = s.canManage(ctx, existing, actorID); err != nil {
		return models.Meeting{}, err
	}
	now := s.now()
	updated, err := applyUpdate(existing, req, now)
	if err != nil {
		return models.Meeting{}, err
	}
	if !updated.StartTime.Equal(existing.StartTime) {
		if err = s.checkSeriesBounds(ctx, updated); err != nil {
			return models.Meeting{}, err
		}
	}
	saved, err := s.store.UpdateMeeting(ctx, updated)
	if err != nil {
		return models.Meeting{}, fmt.Errorf("err updating meeting (id %d) from store: %w", id, err)
	}
	s.notify(models.Event{
		Type:          models.EventMeetingUpdated,
		GroupID:       saved.GroupID,
		MeetingID:     saved.ID,
		ExcludeUserID: &actorID,
		Meeting:       saved,
	})
	return saved.WithStatus(now), nil
}

func applyUpdate(m models.Meeting, req models.MeetingRequest, now time.Time) (models.Meeting, error) {
	vErr := models.NewValidationError()
	if req.Title != nil {
		if t := strings.TrimSpace(*req.Title); t == "" {
			vErr.Add("title", "must not be empty")
		} else {
			m.Title = t
		}
	}
	if req.Description != nil {
		m.Description = trimmed(req.Description)
	}
	if req.MeetingType != nil {
		m.MeetingType = *req.MeetingType
	}
	if req.MeetingLink != nil {
		m.MeetingLink = trimmed(req.MeetingLink)
	}
	if req.Location != nil {
		m.Location = trimmed(req.Location)
	}
	if req.StartTime != nil && !req.StartTime.Equal(m.StartTime) {
		if !req.StartTime.After(now) {
			vErr.Add("startTime", "must be in the future")
		}
		m.StartTime = *req.StartTime
		m.RemindedAt = nil
	}
	if req.EndTime != nil {
		m.EndTime = req.EndTime
	}
	validateShape(&m, vErr)
	if err := vErr.Err(); err != nil {
		return models.Meeting{}, err
	}
	return m, nil
}

// checkSeriesBounds keeps a moved meeting inside its series. An occurrence
// stays after its anchor and not past the rule's end; an anchor stays before
// every remaining occurrence. An occurrence whose anchor was deleted is only
// held to the end.
func (s *ScheduleService) checkSeriesBounds(ctx context.Context, m models.Meeting) error {
	vErr := models.NewValidationError()
	if m.ParentMeetingID != nil {
		anchor, err := s.store.GetMeeting(ctx, *m.ParentMeetingID)
		switch {
		case errors.Is(err, models.ErrMeetingNotFound):
		case err != nil:
			return fmt.Errorf("err getting anchor (id %d) from store: %w", *m.ParentMeetingID, err)
		case !m.StartTime.After(anchor.StartTime):
			vErr.Add("startTime", "must be after the first meeting of the series")
		}
		if m.RecurringUntil != nil && m.StartTime.After(*m.RecurringUntil) {
			vErr.Add("startTime", "must not be after the end of the series")
		}
		return vErr.Err()
	}
	if !m.IsRecurring {
		return nil
	}
	series, err := s.store.ListSeries(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("err listing series %d: %w", m.ID, err)
	}
	children := 0
	for _, child := range series {
		if child.ID == m.ID {
			continue
		}
		children++
		if !m.StartTime.Before(child.StartTime) {
			vErr.Add("startTime", "must be before every occurrence of the series")
			break
		}
	}
	if children == 0 && m.RecurringUntil != nil && !m.StartTime.Before(*m.RecurringUntil) {
		vErr.Add("startTime", "must be before the end of the series")
	}
	return vErr.Err()
}

// DeleteMeeting removes exactly one row. Occurrences of a deleted anchor stay.
// Only a meeting that had not started yet is announced as cancelled.
func (s *ScheduleService) DeleteMeeting(ctx context.Context, actorID, id int) error {
	existing, err := s.store.GetMeeting(ctx, id)
	if err != nil {
		return fmt.Errorf("err deleting meeting (id %d) from store: %w", id, err)
	}
	if err = s.canManage(ctx, existing, actorID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteMeeting(ctx, id)
	if err != nil {
		return fmt.Errorf("err deleting meeting (id %d) from store: %w", id, err)
	}
	if !deleted.IsUpcoming(s.now()) {
		s.log.Debugf("meeting %d deleted after it started, no cancellation sent", id)
		return nil
	}
	s.notify(models.Event{
		Type:          models.EventMeetingCancelled,
		GroupID:       deleted.GroupID,
		MeetingID:     deleted.ID,
		ExcludeUserID: &actorID,
		Meeting:       deleted,
	})
	return nil
}

// IsNotFound reports whether err means the addressed row does not exist.
func IsNotFound(err error) bool {
	for _, target := range []error{
		models.ErrMeetingNotFound, models.ErrGroupNotFound, models.ErrNoteNotFound,
		models.ErrUserNotFound, models.ErrNotificationNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
