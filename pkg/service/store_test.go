package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
)

// memStore keeps rows in maps and mimics the Postgres store closely enough
// for the service rules: not-found errors, single-row deletes and an atomic
// series insert.
type memStore struct {
	mu            sync.Mutex
	nextID        int
	users         map[int]models.User
	groups        map[int]models.Group
	members       map[int]map[int]models.GroupMember
	meetings      map[int]models.Meeting
	notes         map[int]models.MeetingNote
	prayers       []models.PrayerRequest
	notifications map[int]models.Notification
	linkCodes     map[string]int
	failSeries    bool
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[int]models.User),
		groups:        make(map[int]models.Group),
		members:       make(map[int]map[int]models.GroupMember),
		meetings:      make(map[int]models.Meeting),
		notes:         make(map[int]models.MeetingNote),
		notifications: make(map[int]models.Notification),
		linkCodes:     make(map[string]int),
	}
}

func (m *memStore) id() int {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUser(_ context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return models.User{}, models.ErrUserExists
		}
	}
	user.ID = m.id()
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) GetUser(_ context.Context, id int) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, models.ErrUserNotFound
}

func (m *memStore) GetUserByTelegramID(_ context.Context, telegramID int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			return u, nil
		}
	}
	return models.User{}, models.ErrUserNotFound
}

func (m *memStore) CreateLinkCode(_ context.Context, userID int, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linkCodes[code] = userID
	return nil
}

func (m *memStore) LinkTelegram(_ context.Context, code string, telegramID int64, _ time.Time) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.linkCodes[code]
	if !ok {
		return models.User{}, models.ErrLinkCodeInvalid
	}
	delete(m.linkCodes, code)
	u := m.users[userID]
	u.TelegramID = &telegramID
	m.users[userID] = u
	return u, nil
}

func (m *memStore) CreateGroup(_ context.Context, group models.Group) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group.ID = m.id()
	m.groups[group.ID] = group
	m.members[group.ID] = map[int]models.GroupMember{
		group.CreatedBy: {GroupID: group.ID, UserID: group.CreatedBy, Role: models.GroupRoleLeader},
	}
	return group, nil
}

func (m *memStore) GetGroup(_ context.Context, id int) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return models.Group{}, models.ErrGroupNotFound
	}
	return g, nil
}

func (m *memStore) AddMember(_ context.Context, groupID, userID int, role string) (models.GroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return models.GroupMember{}, models.ErrUserNotFound
	}
	member := models.GroupMember{
		GroupID:    groupID,
		UserID:     userID,
		Role:       role,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		TelegramID: u.TelegramID,
	}
	m.members[groupID][userID] = member
	return member, nil
}

func (m *memStore) GetMember(_ context.Context, groupID, userID int) (models.GroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[groupID][userID]
	if !ok {
		return models.GroupMember{}, models.ErrUserNotFound
	}
	return member, nil
}

func (m *memStore) ListMembers(_ context.Context, groupID int) ([]models.GroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.GroupMember, 0, len(m.members[groupID]))
	for _, member := range m.members[groupID] {
		result = append(result, member)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (m *memStore) CreateSeries(_ context.Context, anchor models.Meeting,
	children func(anchor models.Meeting) ([]models.Meeting, error)) (models.Meeting, []models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSeries {
		return models.Meeting{}, nil, context.DeadlineExceeded
	}
	anchor.ID = m.id()
	rows, err := children(anchor)
	if err != nil {
		m.nextID--
		return models.Meeting{}, nil, err
	}
	m.meetings[anchor.ID] = anchor
	for i := range rows {
		rows[i].ID = m.id()
		m.meetings[rows[i].ID] = rows[i]
	}
	return anchor, rows, nil
}

func (m *memStore) GetMeeting(_ context.Context, id int) (models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meeting, ok := m.meetings[id]
	if !ok {
		return models.Meeting{}, models.ErrMeetingNotFound
	}
	return meeting, nil
}

func (m *memStore) sorted(keep func(models.Meeting) bool) []models.Meeting {
	var result []models.Meeting
	for _, meeting := range m.meetings {
		if keep(meeting) {
			result = append(result, meeting)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result
}

func (m *memStore) ListMeetingsByGroup(_ context.Context, groupID int) ([]models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(meeting models.Meeting) bool { return meeting.GroupID == groupID }), nil
}

func (m *memStore) ListSeries(_ context.Context, anchorID int) ([]models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(meeting models.Meeting) bool {
		return meeting.ID == anchorID || (meeting.ParentMeetingID != nil && *meeting.ParentMeetingID == anchorID)
	}), nil
}

func (m *memStore) UpcomingMeetingsForUser(_ context.Context, userID int, now time.Time, limit int) ([]models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.sorted(func(meeting models.Meeting) bool {
		_, member := m.members[meeting.GroupID][userID]
		return member && meeting.IsUpcoming(now)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *memStore) UpdateMeeting(_ context.Context, meeting models.Meeting) (models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.meetings[meeting.ID]; !ok {
		return models.Meeting{}, models.ErrMeetingNotFound
	}
	m.meetings[meeting.ID] = meeting
	return meeting, nil
}

func (m *memStore) DeleteMeeting(_ context.Context, id int) (models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meeting, ok := m.meetings[id]
	if !ok {
		return models.Meeting{}, models.ErrMeetingNotFound
	}
	delete(m.meetings, id)
	return meeting, nil
}

func (m *memStore) CreateNote(_ context.Context, note models.MeetingNote) (models.MeetingNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.meetings[note.MeetingID]; !ok {
		return models.MeetingNote{}, models.ErrMeetingNotFound
	}
	note.ID = m.id()
	m.notes[note.ID] = note
	return note, nil
}

func (m *memStore) GetNote(_ context.Context, id int) (models.MeetingNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[id]
	if !ok {
		return models.MeetingNote{}, models.ErrNoteNotFound
	}
	return note, nil
}

func (m *memStore) ListNotes(_ context.Context, meetingID int) ([]models.MeetingNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.MeetingNote
	for _, note := range m.notes {
		if note.MeetingID == meetingID {
			result = append(result, note)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *memStore) UpdateNote(_ context.Context, id int, content string) (models.MeetingNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[id]
	if !ok {
		return models.MeetingNote{}, models.ErrNoteNotFound
	}
	note.Content = content
	m.notes[id] = note
	return note, nil
}

func (m *memStore) DeleteNote(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return models.ErrNoteNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *memStore) CreatePrayerRequest(_ context.Context, pr models.PrayerRequest) (models.PrayerRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr.ID = m.id()
	m.prayers = append(m.prayers, pr)
	return pr, nil
}

func (m *memStore) ListNotifications(_ context.Context, userID int, unreadOnly bool) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Notification
	for _, n := range m.notifications {
		if n.UserID == userID && (!unreadOnly || n.ReadAt == nil) {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *memStore) MarkNotificationRead(_ context.Context, userID, id int, at time.Time) (models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return models.Notification{}, models.ErrNotificationNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	m.notifications[id] = n
	return n, nil
}

func (m *memStore) meetingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.meetings)
}

// recordingNotifier keeps every event it is handed.
type recordingNotifier struct {
	mu      sync.Mutex
	events  []models.Event
	ctxErrs []error
	err     error
}

func (r *recordingNotifier) Notify(ctx context.Context, event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return r.err
}

func (r *recordingNotifier) all() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Event(nil), r.events...)
}
