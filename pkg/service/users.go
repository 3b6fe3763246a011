package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const upcomingLimit = 10

func (s *ScheduleService) CreateUser(ctx context.Context, req models.UserRequest) (models.User, error) {
	vErr := models.NewValidationError()
	user := models.User{Role: models.RoleMember}
	if req.Email == nil || strings.TrimSpace(*req.Email) == "" {
		vErr.Add("email", "is required")
	} else {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.FirstName == nil || strings.TrimSpace(*req.FirstName) == "" {
		vErr.Add("firstName", "is required")
	} else {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName == nil || strings.TrimSpace(*req.LastName) == "" {
		vErr.Add("lastName", "is required")
	} else {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Password == nil || len(*req.Password) < 8 {
		vErr.Add("password", "must be at least 8 characters")
	}
	if err := vErr.Err(); err != nil {
		return models.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("err hashing password: %w", err)
	}
	user.PasswordHash = string(hash)
	created, err := s.store.CreateUser(ctx, user)
	if err != nil {
		return models.User{}, fmt.Errorf("err creating user: %w", err)
	}
	return created, nil
}

func (s *ScheduleService) GetUser(ctx context.Context, id int) (models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("err getting user (id %d) from store: %w", id, err)
	}
	return user, nil
}

// Login checks the password and issues an RS256 token. Unknown emails and
// wrong passwords both yield ErrInvalidCredentials.
func (s *ScheduleService) Login(ctx context.Context, email, password string) (models.TokenResponse, error) {
	if s.signingKey == nil {
		return models.TokenResponse{}, errors.New("token signing is not configured")
	}
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		return models.TokenResponse{}, models.ErrInvalidCredentials
	case err != nil:
		return models.TokenResponse{}, fmt.Errorf("err getting user: %w", err)
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.TokenResponse{}, models.ErrInvalidCredentials
	}
	now := s.now()
	claims := models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			ID:        uuid.NewString(),
		},
		UserID: user.ID,
		Role:   user.Role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.signingKey)
	if err != nil {
		return models.TokenResponse{}, fmt.Errorf("err signing token: %w", err)
	}
	return models.TokenResponse{Token: token}, nil
}

// TelegramLinkCode issues a one-time code the user sends to the bot as
// "/start <code>" to receive notifications in Telegram.
func (s *ScheduleService) TelegramLinkCode(ctx context.Context, actorID int) (models.LinkCode, error) {
	code := models.LinkCode{
		Code:      strings.ReplaceAll(uuid.NewString(), "-", ""),
		ExpiresAt: s.now().Add(s.linkTTL),
	}
	if err := s.store.CreateLinkCode(ctx, actorID, code.Code, code.ExpiresAt); err != nil {
		return models.LinkCode{}, err
	}
	if s.botName != "" {
		code.DeepLink = fmt.Sprintf("https://t.me/%s?start=%s", s.botName, code.Code)
	}
	return code, nil
}

func (s *ScheduleService) LinkTelegram(ctx context.Context, code string, chatID int64) (models.User, error) {
	return s.store.LinkTelegram(ctx, strings.TrimSpace(code), chatID, s.now())
}

// UpcomingForTelegram lists the next meetings across every group of the
// user linked to chatID.
func (s *ScheduleService) UpcomingForTelegram(ctx context.Context, chatID int64) ([]models.Meeting, error) {
	user, err := s.store.GetUserByTelegramID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	meetings, err := s.store.UpcomingMeetingsForUser(ctx, user.ID, now, upcomingLimit)
	if err != nil {
		return nil, fmt.Errorf("err listing upcoming meetings of user %d: %w", user.ID, err)
	}
	for i := range meetings {
		meetings[i] = meetings[i].WithStatus(now)
	}
	return meetings, nil
}
