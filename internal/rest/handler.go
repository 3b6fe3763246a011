package rest

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type App interface {
	CreateUser(ctx context.Context, req models.UserRequest) (models.User, error)
	GetUser(ctx context.Context, id int) (models.User, error)
	Login(ctx context.Context, email, password string) (models.TokenResponse, error)
	TelegramLinkCode(ctx context.Context, actorID int) (models.LinkCode, error)

	CreateGroup(ctx context.Context, actorID int, req models.GroupRequest) (models.Group, error)
	AddMember(ctx context.Context, actorID, groupID int, req models.MemberRequest) (models.GroupMember, error)
	ListMembers(ctx context.Context, actorID, groupID int) ([]models.GroupMember, error)

	CreateMeeting(ctx context.Context, actorID, groupID int, req models.MeetingRequest) (models.CreatedMeeting, error)
	GetMeeting(ctx context.Context, actorID, id int) (models.Meeting, error)
	ListGroupMeetings(ctx context.Context, actorID, groupID int, filter models.MeetingFilter) ([]models.Meeting, error)
	ListSeries(ctx context.Context, actorID, id int) ([]models.Meeting, error)
	UpdateMeeting(ctx context.Context, actorID, id int, req models.MeetingRequest) (models.Meeting, error)
	DeleteMeeting(ctx context.Context, actorID, id int) error

	CreateNote(ctx context.Context, actorID, meetingID int, req models.NoteRequest) (models.MeetingNote, error)
	ListNotes(ctx context.Context, actorID, meetingID int) ([]models.MeetingNote, error)
	UpdateNote(ctx context.Context, actorID, noteID int, req models.NoteRequest) (models.MeetingNote, error)
	DeleteNote(ctx context.Context, actorID, noteID int) error
	ExportNote(ctx context.Context, actorID, noteID int, req models.ExportRequest) (models.PrayerRequest, error)

	ListNotifications(ctx context.Context, actorID int, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, actorID, id int) (models.Notification, error)
}

type Server struct {
	log       *logrus.Entry
	app       App
	address   string
	version   string
	publicKey *rsa.PublicKey
	validate  *validator.Validate
}

func NewServer(log *logrus.Logger, app App, address, version string, publicKey *rsa.PublicKey) *Server {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	s := Server{
		log:       log.WithField("component", "rest"),
		app:       app,
		address:   address,
		version:   version,
		publicKey: publicKey,
		validate:  validate,
	}
	return &s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Get("/version", s.versionHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Post("/users", s.createUserHandler)
			r.Post("/login", s.loginHandler)

			r.Group(func(r chi.Router) {
				r.Use(s.jwtAuth)
				r.Get("/me", s.meHandler)
				r.Post("/me/telegram", s.telegramLinkHandler)

				r.Post("/groups", s.createGroupHandler)
				r.Route("/groups/{groupID}", func(r chi.Router) {
					r.Get("/members", s.listMembersHandler)
					r.Post("/members", s.addMemberHandler)
					r.Get("/meetings", s.listMeetingsHandler)
					r.Post("/meetings", s.createMeetingHandler)
				})

				r.Route("/meetings/{id}", func(r chi.Router) {
					r.Get("/", s.getMeetingHandler)
					r.Put("/", s.updateMeetingHandler)
					r.Patch("/", s.updateMeetingHandler)
					r.Delete("/", s.deleteMeetingHandler)
					r.Get("/series", s.seriesHandler)
					r.Get("/notes", s.listNotesHandler)
					r.Post("/notes", s.createNoteHandler)
				})

				r.Route("/notes/{id}", func(r chi.Router) {
					r.Put("/", s.updateNoteHandler)
					r.Delete("/", s.deleteNoteHandler)
					r.Post("/prayer-requests", s.exportNoteHandler)
				})

				r.Get("/notifications", s.listNotificationsHandler)
				r.Post("/notifications/{id}/read", s.readNotificationHandler)
			})
		})
	})
	return r
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("err during shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", s.address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
