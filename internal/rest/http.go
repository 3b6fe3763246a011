package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"github.com/pershin-daniil/PrayerPipeline/pkg/service"
)

// ErrInternal is all a client learns about a failure it cannot fix.
var ErrInternal = errors.New("internal error")

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *Server) versionHandler(w http.ResponseWriter, _ *http.Request) {
	_, err := fmt.Fprintf(w, "%s\n", s.version)
	if err != nil {
		s.log.Warnf("err during writing to connection: %v", err)
	}
}

func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UserRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, err := s.app.CreateUser(r.Context(), req)
	if err != nil {
		s.writeError(w, "creating user", err)
		return
	}
	s.writeResponse(w, http.StatusCreated, user)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, "login", err)
		return
	}
	s.writeResponse(w, http.StatusOK, token)
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.app.GetUser(r.Context(), s.actorID(r))
	if err != nil {
		s.writeError(w, "getting user", err)
		return
	}
	s.writeResponse(w, http.StatusOK, user)
}

func (s *Server) telegramLinkHandler(w http.ResponseWriter, r *http.Request) {
	code, err := s.app.TelegramLinkCode(r.Context(), s.actorID(r))
	if err != nil {
		s.writeError(w, "creating link code", err)
		return
	}
	s.writeResponse(w, http.StatusCreated, code)
}

func (s *Server) createGroupHandler(w http.ResponseWriter, r *http.Request) {
	var req models.GroupRequest
	if !s.decode(w, r, &req) {
		return
	}
	group, err := s.app.CreateGroup(r.Context(), s.actorID(r), req)
	if err != nil {
		s.writeError(w, "creating group", err)
		return
	}
	s.writeResponse(w, http.StatusCreated, group)
}

func (s *Server) listMembersHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.pathID(w, r, "groupID")
	if !ok {
		return
	}
	members, err := s.app.ListMembers(r.Context(), s.actorID(r), groupID)
	if err != nil {
		s.writeError(w, "listing members", err)
		return
	}
	s.writeResponse(w, http.StatusOK, members)
}

func (s *Server) addMemberHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.pathID(w, r, "groupID")
	if !ok {
		return
	}
	var req models.MemberRequest
	if !s.decode(w, r, &req) {
		return
	}
	member, err := s.app.AddMember(r.Context(), s.actorID(r), groupID, req)
	if err != nil {
		s.writeError(w, "adding member", err)
		return
	}
	s.writeResponse(w, http.StatusCreated, member)
}

func (s *Server) createMeetingHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.pathID(w, r, "groupID")
	if !ok {
		return
	}
	var req models.MeetingRequest
	if !s.decode(w, r, &req) {
		return
	}
	created, err := s.app.CreateMeeting(r.Context(), s.actorID(r), groupID, req)
	if err != nil {
		s.writeError(w, "creating meeting", err)
		return
	}
	s.writeResponse(w, http.StatusCreated, created)
}

func (s *Server) listMeetingsHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.pathID(w, r, "groupID")
	if !ok {
		return
	}
	filter := models.MeetingFilter(r.URL.Query().Get("status"))
	switch filter {
	case "":
		filter = models.FilterAll
	case models.FilterAll, models.FilterUpcoming, models.FilterPast:
	default:
		vErr := models.NewValidationError()
		vErr.Add("status", "must be one of all, upcoming, past")
		s.writeError(w, "listing meetings", vErr)
		return
	}
	meetings, err := s.app.ListGroupMeetings(r.Context(), s.actorID(r), groupID, filter)
	if err != nil {
		s.writeError(w, "listing meetings", err)
		return
	}
	s.writeResponse(w, http.StatusOK, meetings)
}

func (s *Server) getMeetingHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	meeting, err := s.app.GetMeeting(r.Context(), s.actorID(r), id)
	if err != nil {
		s.writeError(w, "getting meeting", err)
		return
	}
	s.writeResponse(w, http.StatusOK, meeting)
}

func (s *Server) seriesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	series, err := s.app.ListSeries(r.Context(), s.actorID(r), id)
	if err != nil {
		s.writeError(w, "listing series", err)
		return
	}
	s.writeResponse(w, http.StatusOK, series)
}

func (s *Server) updateMeetingHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.MeetingRequest
	if !s.decode(w, r, &req) {
		return
	}
	updated, err := s.app.UpdateMeeting(r.Context(), s.actorID(r), id, req)
	if err != nil {
		s.writeError(w, "updating meeting", err)
		return
	}
	s.writeResponse(w, http.StatusOK, updated)
}

func (s *Server) deleteMeetingHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.DeleteMeeting(r.Context(), s.actorID(r), id); err != nil {
		s.writeError(w, "deleting meeting", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listNotesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	notes, err := s.app.ListNotes(r.Context(), s.actorID(r), id)
	if err != nil {
		s.writeError(w, "listing notes", err)
		return
	}
	s.writeResponse(w, http.StatusOK, notes)
}

func (s *Server) createNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.NoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	note, err := s.app.CreateNote(r.Context(), s.actorID(r), id, req)
	if err != nil {
		s.writeError(w, "creating note", err)
		return
	}
	s.writeResponse(w, http.StatusCreated, note)
}

func (s *Server) updateNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.NoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	note, err := s.app.UpdateNote(r.Context(), s.actorID(r), id, req)
	if err != nil {
		s.writeError(w, "updating note", err)
		return
	}
	s.writeResponse(w, http.StatusOK, note)
}

func (s *Server) deleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.DeleteNote(r.Context(), s.actorID(r), id); err != nil {
		s.writeError(w, "deleting note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.ExportRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	pr, err := s.app.ExportNote(r.Context(), s.actorID(r), id, req)
	if err != nil {
		s.writeError(w, "exporting note", err)
		return
	}
	s.writeResponse(w, http.StatusCreated, pr)
}

func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	notifications, err := s.app.ListNotifications(r.Context(), s.actorID(r), unread)
	if err != nil {
		s.writeError(w, "listing notifications", err)
		return
	}
	s.writeResponse(w, http.StatusOK, notifications)
}

func (s *Server) readNotificationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	n, err := s.app.MarkNotificationRead(r.Context(), s.actorID(r), id)
	if err != nil {
		s.writeError(w, "marking notification read", err)
		return
	}
	s.writeResponse(w, http.StatusOK, n)
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		s.writeResponse(w, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return id, true
}

// decode reads a JSON body into dst and checks its validate tags. On failure
// the response is already written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeResponse(w, http.StatusBadRequest, fmt.Errorf("err decoding body: %w", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			s.writeResponse(w, http.StatusBadRequest, err)
			return false
		}
		vErr := models.NewValidationError()
		for _, fe := range fieldErrs {
			vErr.Add(fe.Field(), fmt.Sprintf("failed %q validation", fe.Tag()))
		}
		s.writeResponse(w, http.StatusBadRequest, vErr)
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case models.IsValidation(err):
		s.writeResponse(w, http.StatusBadRequest, err)
	case service.IsNotFound(err):
		s.writeResponse(w, http.StatusNotFound, err)
	case errors.Is(err, models.ErrForbidden):
		s.writeResponse(w, http.StatusForbidden, err)
	case errors.Is(err, models.ErrInvalidCredentials):
		s.writeResponse(w, http.StatusUnauthorized, err)
	case errors.Is(err, models.ErrUserExists):
		s.writeResponse(w, http.StatusConflict, err)
	default:
		s.log.Errorf("err during %s: %v", op, err)
		s.writeResponse(w, http.StatusInternalServerError, ErrInternal)
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if x, ok := data.(error); ok {
		resp := ErrorResponse{Error: x.Error()}
		var vErr *models.ValidationError
		if errors.As(x, &vErr) {
			resp.Fields = vErr.Fields
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.log.Warnf("err during encoding error: %v", err)
		}
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnf("err during encoding response: %v", err)
	}
}
