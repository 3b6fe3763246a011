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

// CreateNotifications inserts all rows with one statement.
func (s *Store) CreateNotifications(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	query := `
INSERT INTO notifications (user_id, group_id, meeting_id, type, message)
VALUES (:user_id, :group_id, :meeting_id, :type, :message);`
	err := s.write("create_notifications", func() error {
		_, err := sqlx.NamedExecContext(ctx, s.ext, query, notifications)
		return err
	})
	if err != nil {
		return fmt.Errorf("err creating %d notifications: %w", len(notifications), err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID int, unreadOnly bool) ([]models.Notification, error) {
	notifications := make([]models.Notification, 0)
	query := `
SELECT * FROM notifications
WHERE user_id = $1 AND ($2 = FALSE OR read_at IS NULL)
ORDER BY created_at DESC, id DESC
LIMIT 200;`
	err := s.read(ctx, "list_notifications", func() error {
		notifications = notifications[:0]
		return sqlx.SelectContext(ctx, s.ext, &notifications, query, userID, unreadOnly)
	})
	if err != nil {
		return nil, fmt.Errorf("err listing notifications of user %d: %w", userID, err)
	}
	return notifications, nil
}

// MarkNotificationRead only matches rows owned by userID.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id int, at time.Time) (models.Notification, error) {
	var updated models.Notification
	err := s.write("mark_notification_read", func() error {
		return sqlx.GetContext(ctx, s.ext, &updated, `
UPDATE notifications
SET read_at = COALESCE(read_at, $3)
WHERE id = $1 AND user_id = $2
RETURNING *;`, id, userID, at)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Notification{}, models.ErrNotificationNotFound
	case err != nil:
		return models.Notification{}, fmt.Errorf("err marking notification %d read: %w", id, err)
	}
	return updated, nil
}
