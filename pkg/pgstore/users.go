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

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	var createdUser models.User
	query := `
INSERT INTO users (last_name, first_name, email, password_hash, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING *;`
	err := s.write("create_user", func() error {
		return sqlx.GetContext(ctx, s.ext, &createdUser, query,
			user.LastName, user.FirstName, user.Email, user.PasswordHash, user.Role)
	})
	if pgCode(err) == pgUniqueViolation {
		return models.User{}, models.ErrUserExists
	}
	if err != nil {
		return models.User{}, fmt.Errorf("err creating user: %w", err)
	}
	return createdUser, nil
}

func (s *Store) GetUser(ctx context.Context, id int) (models.User, error) {
	return s.getUser(ctx, "get_user", `SELECT * FROM users WHERE id = $1;`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUser(ctx, "get_user_by_email", `SELECT * FROM users WHERE lower(email) = lower($1);`, email)
}

func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (models.User, error) {
	return s.getUser(ctx, "get_user_by_telegram", `SELECT * FROM users WHERE telegram_id = $1;`, telegramID)
}

func (s *Store) getUser(ctx context.Context, method, query string, arg interface{}) (models.User, error) {
	var user models.User
	err := s.read(ctx, method, func() error {
		return sqlx.GetContext(ctx, s.ext, &user, query, arg)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.User{}, models.ErrUserNotFound
	case err != nil:
		return models.User{}, fmt.Errorf("err getting user: %w", err)
	}
	return user, nil
}

func (s *Store) CreateLinkCode(ctx context.Context, userID int, code string, expiresAt time.Time) error {
	err := s.write("create_link_code", func() error {
		_, err := s.ext.ExecContext(ctx, `
INSERT INTO telegram_link_codes (code, user_id, expires_at)
VALUES ($1, $2, $3);`, code, userID, expiresAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("err creating link code: %w", err)
	}
	return nil
}

// LinkTelegram consumes an unexpired link code and attaches the Telegram chat
// to the code's owner. A chat linked to another account is moved over.
func (s *Store) LinkTelegram(ctx context.Context, code string, telegramID int64, now time.Time) (models.User, error) {
	var user models.User
	err := s.InTx(ctx, func(tx *Store) error {
		var userID int
		if err := tx.write("consume_link_code", func() error {
			return sqlx.GetContext(ctx, tx.ext, &userID, `
DELETE FROM telegram_link_codes
WHERE code = $1 AND expires_at > $2
RETURNING user_id;`, code, now)
		}); err != nil {
			return err
		}
		if err := tx.write("unlink_telegram", func() error {
			_, err := tx.ext.ExecContext(ctx, `UPDATE users SET telegram_id = NULL WHERE telegram_id = $1;`, telegramID)
			return err
		}); err != nil {
			return err
		}
		return tx.write("link_telegram", func() error {
			return sqlx.GetContext(ctx, tx.ext, &user, `
UPDATE users
SET telegram_id = $2,
    updated_at = now()
WHERE id = $1
RETURNING *;`, userID, telegramID)
		})
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.User{}, models.ErrLinkCodeInvalid
	case err != nil:
		return models.User{}, fmt.Errorf("err linking telegram: %w", err)
	}
	return user, nil
}
