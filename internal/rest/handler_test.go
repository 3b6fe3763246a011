package rest

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/suite"

	"github.com/pershin-daniil/PrayerPipeline/pkg/logger"
	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
)

// fakeApp records the last call and returns canned results.
type fakeApp struct {
	actorID  int
	groupID  int
	filter   models.MeetingFilter
	meeting  models.MeetingRequest
	unread   bool
	err      error
	meetings []models.Meeting
}

func (f *fakeApp) CreateUser(_ context.Context, req models.UserRequest) (models.User, error) {
	if f.err != nil {
		return models.User{}, f.err
	}
	return models.User{ID: 1, Email: *req.Email, FirstName: *req.FirstName, LastName: *req.LastName}, nil
}

func (f *fakeApp) GetUser(_ context.Context, id int) (models.User, error) {
	f.actorID = id
	return models.User{ID: id}, f.err
}

func (f *fakeApp) Login(_ context.Context, email, password string) (models.TokenResponse, error) {
	if email != "ivan@example.com" || password != "secret-password" {
		return models.TokenResponse{}, models.ErrInvalidCredentials
	}
	return models.TokenResponse{Token: "token"}, nil
}

func (f *fakeApp) TelegramLinkCode(_ context.Context, actorID int) (models.LinkCode, error) {
	f.actorID = actorID
	return models.LinkCode{Code: "abc"}, f.err
}

func (f *fakeApp) CreateGroup(_ context.Context, actorID int, req models.GroupRequest) (models.Group, error) {
	f.actorID = actorID
	return models.Group{ID: 3, Name: req.Name, CreatedBy: actorID}, f.err
}

func (f *fakeApp) AddMember(_ context.Context, actorID, groupID int, req models.MemberRequest) (models.GroupMember, error) {
	f.actorID, f.groupID = actorID, groupID
	return models.GroupMember{GroupID: groupID, UserID: req.UserID}, f.err
}

func (f *fakeApp) ListMembers(_ context.Context, actorID, groupID int) ([]models.GroupMember, error) {
	f.actorID, f.groupID = actorID, groupID
	return nil, f.err
}

func (f *fakeApp) CreateMeeting(_ context.Context, actorID, groupID int, req models.MeetingRequest) (models.CreatedMeeting, error) {
	f.actorID, f.groupID, f.meeting = actorID, groupID, req
	if f.err != nil {
		return models.CreatedMeeting{}, f.err
	}
	return models.CreatedMeeting{Meeting: models.Meeting{ID: 10, GroupID: groupID}, Occurrences: f.meetings}, nil
}

func (f *fakeApp) GetMeeting(_ context.Context, actorID, id int) (models.Meeting, error) {
	f.actorID = actorID
	return models.Meeting{ID: id}, f.err
}

func (f *fakeApp) ListGroupMeetings(_ context.Context, actorID, groupID int, filter models.MeetingFilter) ([]models.Meeting, error) {
	f.actorID, f.groupID, f.filter = actorID, groupID, filter
	return f.meetings, f.err
}

func (f *fakeApp) ListSeries(_ context.Context, actorID, _ int) ([]models.Meeting, error) {
	f.actorID = actorID
	return f.meetings, f.err
}

func (f *fakeApp) UpdateMeeting(_ context.Context, actorID, id int, req models.MeetingRequest) (models.Meeting, error) {
	f.actorID, f.meeting = actorID, req
	return models.Meeting{ID: id}, f.err
}

func (f *fakeApp) DeleteMeeting(_ context.Context, actorID, _ int) error {
	f.actorID = actorID
	return f.err
}

func (f *fakeApp) CreateNote(_ context.Context, actorID, meetingID int, req models.NoteRequest) (models.MeetingNote, error) {
	f.actorID = actorID
	return models.MeetingNote{ID: 1, MeetingID: meetingID, Content: req.Content}, f.err
}

func (f *fakeApp) ListNotes(_ context.Context, actorID, _ int) ([]models.MeetingNote, error) {
	f.actorID = actorID
	return nil, f.err
}

func (f *fakeApp) UpdateNote(_ context.Context, actorID, noteID int, req models.NoteRequest) (models.MeetingNote, error) {
	f.actorID = actorID
	return models.MeetingNote{ID: noteID, Content: req.Content}, f.err
}

func (f *fakeApp) DeleteNote(_ context.Context, actorID, _ int) error {
	f.actorID = actorID
	return f.err
}

func (f *fakeApp) ExportNote(_ context.Context, actorID, _ int, req models.ExportRequest) (models.PrayerRequest, error) {
	f.actorID = actorID
	title := "default"
	if req.Title != nil {
		title = *req.Title
	}
	return models.PrayerRequest{ID: 4, Title: title}, f.err
}

func (f *fakeApp) ListNotifications(_ context.Context, actorID int, unreadOnly bool) ([]models.Notification, error) {
	f.actorID, f.unread = actorID, unreadOnly
	return nil, f.err
}

func (f *fakeApp) MarkNotificationRead(_ context.Context, actorID, id int) (models.Notification, error) {
	f.actorID = actorID
	return models.Notification{ID: id}, f.err
}

type HandlerTestSuite struct {
	suite.Suite
	key *rsa.PrivateKey
	app *fakeApp
	srv *httptest.Server
}

func (s *HandlerTestSuite) SetupSuite() {
	var err error
	s.key, err = rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
}

func (s *HandlerTestSuite) SetupTest() {
	s.app = &fakeApp{}
	server := NewServer(logger.NewLogger(), s.app, ":0", "test", &s.key.PublicKey)
	s.srv = httptest.NewServer(server.Router())
}

func (s *HandlerTestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *HandlerTestSuite) token(userID int, ttl time.Duration) string {
	claims := models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl))},
		UserID:           userID,
		Role:             models.RoleMember,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	s.Require().NoError(err)
	return token
}

func (s *HandlerTestSuite) do(method, path, token string, body interface{}, dst interface{}) *http.Response {
	s.T().Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, s.srv.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	defer func() {
		s.Require().NoError(resp.Body.Close())
	}()
	if dst != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp
}

func (s *HandlerTestSuite) TestVersion() {
	resp := s.do(http.MethodGet, "/version", "", nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().NotEmpty(resp.Header.Get(requestIDHeader))
}

func (s *HandlerTestSuite) TestCreateUser() {
	var user models.User
	resp := s.do(http.MethodPost, "/api/v1/users", "", map[string]string{
		"firstName": "Ivan",
		"lastName":  "Ivanov",
		"email":     "ivan@example.com",
		"password":  "secret-password",
	}, &user)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Require().Equal("ivan@example.com", user.Email)

	var errResp ErrorResponse
	resp = s.do(http.MethodPost, "/api/v1/users", "", map[string]string{"email": "not-an-email"}, &errResp)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Require().Contains(errResp.Fields, "email")
	s.Require().Contains(errResp.Fields, "password")

	s.app.err = models.ErrUserExists
	resp = s.do(http.MethodPost, "/api/v1/users", "", map[string]string{
		"firstName": "Ivan",
		"lastName":  "Ivanov",
		"email":     "ivan@example.com",
		"password":  "secret-password",
	}, nil)
	s.Require().Equal(http.StatusConflict, resp.StatusCode)
}

func (s *HandlerTestSuite) TestLogin() {
	var token models.TokenResponse
	resp := s.do(http.MethodPost, "/api/v1/login", "", models.LoginRequest{Email: "ivan@example.com", Password: "secret-password"}, &token)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal("token", token.Token)

	resp = s.do(http.MethodPost, "/api/v1/login", "", models.LoginRequest{Email: "ivan@example.com", Password: "nope"}, nil)
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *HandlerTestSuite) TestAuthRequired() {
	resp := s.do(http.MethodGet, "/api/v1/me", "", nil, nil)
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/v1/me", "garbage", nil, nil)
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/v1/me", s.token(5, -time.Minute), nil, nil)
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodRS256, models.Claims{UserID: 5}).SignedString(other)
	s.Require().NoError(err)
	resp = s.do(http.MethodGet, "/api/v1/me", forged, nil, nil)
	s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)

	var user models.User
	resp = s.do(http.MethodGet, "/api/v1/me", s.token(5, time.Hour), nil, &user)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal(5, user.ID)
}

func (s *HandlerTestSuite) TestCreateMeeting() {
	s.app.meetings = []models.Meeting{{ID: 11}, {ID: 12}}
	body := `{"title":"Evening prayer","meetingType":"zoom","meetingLink":"https://zoom.us/j/1",
		"startTime":"2024-01-01T18:00:00Z","isRecurring":true,"recurringPattern":"weekly","recurringUntil":"2024-01-22"}`
	var created models.CreatedMeeting
	resp := s.do(http.MethodPost, "/api/v1/groups/3/meetings", s.token(5, time.Hour), body, &created)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Require().Equal(10, created.ID)
	s.Require().Len(created.Occurrences, 2)
	s.Require().Equal(5, s.app.actorID)
	s.Require().Equal(3, s.app.groupID)
	s.Require().Equal(time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), *s.app.meeting.RecurringUntil.Ptr())

	var errResp ErrorResponse
	resp = s.do(http.MethodPost, "/api/v1/groups/3/meetings", s.token(5, time.Hour), `{"recurringPattern":"yearly"}`, &errResp)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Require().Contains(errResp.Fields, "recurringPattern")

	vErr := models.NewValidationError()
	vErr.Add("startTime", "must be in the future")
	s.app.err = vErr
	resp = s.do(http.MethodPost, "/api/v1/groups/3/meetings", s.token(5, time.Hour), `{}`, &errResp)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Require().Equal("must be in the future", errResp.Fields["startTime"])

	resp = s.do(http.MethodPost, "/api/v1/groups/abc/meetings", s.token(5, time.Hour), `{}`, nil)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerTestSuite) TestErrorMapping() {
	tests := []struct {
		err    error
		status int
	}{
		{err: fmt.Errorf("wrapped: %w", models.ErrMeetingNotFound), status: http.StatusNotFound},
		{err: models.ErrGroupNotFound, status: http.StatusNotFound},
		{err: fmt.Errorf("nope: %w", models.ErrForbidden), status: http.StatusForbidden},
		{err: fmt.Errorf("db down"), status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		s.app.err = tc.err
		resp := s.do(http.MethodGet, "/api/v1/meetings/7", s.token(5, time.Hour), nil, nil)
		s.Require().Equal(tc.status, resp.StatusCode, tc.err.Error())
	}
}

func (s *HandlerTestSuite) TestInternalErrorIsNotLeaked() {
	s.app.err = fmt.Errorf("err get_meeting: %w", errors.New(`pq: relation "meetings" does not exist`))
	var errResp ErrorResponse
	resp := s.do(http.MethodGet, "/api/v1/meetings/7", s.token(5, time.Hour), nil, &errResp)
	s.Require().Equal(http.StatusInternalServerError, resp.StatusCode)
	s.Require().Equal("internal error", errResp.Error)
	s.Require().Empty(errResp.Fields)
}

func (s *HandlerTestSuite) TestMeetingRoutes() {
	tok := s.token(5, time.Hour)

	resp := s.do(http.MethodGet, "/api/v1/groups/3/meetings?status=upcoming", tok, nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal(models.FilterUpcoming, s.app.filter)

	resp = s.do(http.MethodGet, "/api/v1/groups/3/meetings", tok, nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal(models.FilterAll, s.app.filter)

	resp = s.do(http.MethodGet, "/api/v1/groups/3/meetings?status=soon", tok, nil, nil)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)

	var m models.Meeting
	resp = s.do(http.MethodPatch, "/api/v1/meetings/7", tok, `{"title":"Renamed"}`, &m)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal(7, m.ID)
	s.Require().Equal("Renamed", *s.app.meeting.Title)

	resp = s.do(http.MethodGet, "/api/v1/meetings/7/series", tok, nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodDelete, "/api/v1/meetings/7", tok, nil, nil)
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)
}

func (s *HandlerTestSuite) TestNotesAndNotifications() {
	tok := s.token(5, time.Hour)

	var note models.MeetingNote
	resp := s.do(http.MethodPost, "/api/v1/meetings/7/notes", tok, models.NoteRequest{Content: "Pray for Anna"}, &note)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Require().Equal(7, note.MeetingID)

	resp = s.do(http.MethodPost, "/api/v1/meetings/7/notes", tok, models.NoteRequest{}, nil)
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)

	var pr models.PrayerRequest
	resp = s.do(http.MethodPost, "/api/v1/notes/1/prayer-requests", tok, nil, &pr)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Require().Equal("default", pr.Title)

	resp = s.do(http.MethodPost, "/api/v1/notes/1/prayer-requests", tok, `{"title":"Anna"}`, &pr)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Require().Equal("Anna", pr.Title)

	resp = s.do(http.MethodDelete, "/api/v1/notes/1", tok, nil, nil)
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/v1/notifications?unread=true", tok, nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().True(s.app.unread)

	var n models.Notification
	resp = s.do(http.MethodPost, "/api/v1/notifications/9/read", tok, nil, &n)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal(9, n.ID)
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}
