// Package service holds the application logic: meeting scheduling and its
// lifecycle, meeting notes, group membership and account access.
package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"github.com/pershin-daniil/PrayerPipeline/pkg/recurrence"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Notify(ctx context.Context, event models.Event) error
}

type Store interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, id int) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (models.User, error)
	CreateLinkCode(ctx context.Context, userID int, code string, expiresAt time.Time) error
	LinkTelegram(ctx context.Context, code string, telegramID int64, now time.Time) (models.User, error)

	CreateGroup(ctx context.Context, group models.Group) (models.Group, error)
	GetGroup(ctx context.Context, id int) (models.Group, error)
	AddMember(ctx context.Context, groupID, userID int, role string) (models.GroupMember, error)
	GetMember(ctx context.Context, groupID, userID int) (models.GroupMember, error)
	ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error)

	CreateSeries(ctx context.Context, anchor models.Meeting,
		children func(anchor models.Meeting) ([]models.Meeting, error)) (models.Meeting, []models.Meeting, error)
	GetMeeting(ctx context.Context, id int) (models.Meeting, error)
	ListMeetingsByGroup(ctx context.Context, groupID int) ([]models.Meeting, error)
	ListSeries(ctx context.Context, anchorID int) ([]models.Meeting, error)
	UpcomingMeetingsForUser(ctx context.Context, userID int, now time.Time, limit int) ([]models.Meeting, error)
	UpdateMeeting(ctx context.Context, m models.Meeting) (models.Meeting, error)
	DeleteMeeting(ctx context.Context, id int) (models.Meeting, error)

	CreateNote(ctx context.Context, note models.MeetingNote) (models.MeetingNote, error)
	GetNote(ctx context.Context, id int) (models.MeetingNote, error)
	ListNotes(ctx context.Context, meetingID int) ([]models.MeetingNote, error)
	UpdateNote(ctx context.Context, id int, content string) (models.MeetingNote, error)
	DeleteNote(ctx context.Context, id int) error
	CreatePrayerRequest(ctx context.Context, pr models.PrayerRequest) (models.PrayerRequest, error)

	ListNotifications(ctx context.Context, userID int, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int, at time.Time) (models.Notification, error)
}

// ScheduleService is the meeting lifecycle manager plus the collaborator
// operations the HTTP and Telegram front ends need.
type ScheduleService struct {
	log        *logrus.Entry
	store      Store
	notifier   Notifier
	now        func() time.Time
	maxSpan    time.Duration
	signingKey *rsa.PrivateKey
	tokenTTL   time.Duration
	linkTTL    time.Duration
	botName    string

	notifyTimeout time.Duration
	events        chan models.Event
	done          chan struct{}
	closeOnce     sync.Once
}

const (
	eventBuffer          = 256
	defaultNotifyTimeout = 30 * time.Second
)

type Option func(*ScheduleService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ScheduleService) {
		s.now = now
	}
}

// WithMaxRecurrenceSpan caps how far recurringUntil may be from startTime.
func WithMaxRecurrenceSpan(d time.Duration) Option {
	return func(s *ScheduleService) {
		if d > 0 {
			s.maxSpan = d
		}
	}
}

func WithSigningKey(key *rsa.PrivateKey, ttl time.Duration) Option {
	return func(s *ScheduleService) {
		s.signingKey = key
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithNotifyTimeout bounds the delivery of one event to group members.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *ScheduleService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithTelegramBot sets the bot username used to build account link deep links.
func WithTelegramBot(name string) Option {
	return func(s *ScheduleService) {
		s.botName = name
	}
}

func NewScheduleService(log *logrus.Logger, store Store, notifier Notifier, opts ...Option) *ScheduleService {
	s := ScheduleService{
		log:      log.WithField("component", "service"),
		store:    store,
		notifier: notifier,
		now:      time.Now,
		maxSpan:  recurrence.DefaultSpan,
		tokenTTL: 24 * time.Hour,
		linkTTL:  15 * time.Minute,

		notifyTimeout: defaultNotifyTimeout,
		events:        make(chan models.Event, eventBuffer),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&s)
	}
	go s.dispatch()
	return &s
}

// Close stops accepting events and waits until the queued ones are handed to
// the notifier. No mutation may run after Close.
func (s *ScheduleService) Close() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
	<-s.done
}

// notify queues the event and returns. A meeting mutation that reached the
// store stands even if nobody hears about it.
func (s *ScheduleService) notify(event models.Event) {
	if s.notifier == nil {
		return
	}
	s.events <- event
}

// dispatch delivers events one by one in the order they were queued, each on
// its own context so a finished request does not cancel delivery.
func (s *ScheduleService) dispatch() {
	defer close(s.done)
	for event := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.log.Errorf("err notifying group %d about %s of meeting %d: %v", event.GroupID, event.Type, event.MeetingID, err)
		}
		cancel()
	}
}

// membership returns the actor's membership, ErrGroupNotFound for an unknown
// group and ErrForbidden for a non-member.
func (s *ScheduleService) membership(ctx context.Context, groupID, actorID int) (models.GroupMember, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return models.GroupMember{}, err
	}
	member, err := s.store.GetMember(ctx, groupID, actorID)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		return models.GroupMember{}, fmt.Errorf("user %d is not a member of group %d: %w", actorID, groupID, models.ErrForbidden)
	case err != nil:
		return models.GroupMember{}, err
	}
	return member, nil
}

// canManage reports whether the actor may edit or delete m and author its
// notes: the meeting creator or a leader of its group.
func (s *ScheduleService) canManage(ctx context.Context, m models.Meeting, actorID int) error {
	member, err := s.membership(ctx, m.GroupID, actorID)
	if err != nil {
		return err
	}
	if m.CreatedBy == actorID || member.IsLeader() {
		return nil
	}
	return fmt.Errorf("only the meeting creator or a group leader can do that: %w", models.ErrForbidden)
}
