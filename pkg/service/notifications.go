package service

import (
	"context"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
)

func (s *ScheduleService) ListNotifications(ctx context.Context, actorID int, unreadOnly bool) ([]models.Notification, error) {
	return s.store.ListNotifications(ctx, actorID, unreadOnly)
}

func (s *ScheduleService) MarkNotificationRead(ctx context.Context, actorID, id int) (models.Notification, error) {
	return s.store.MarkNotificationRead(ctx, actorID, id, s.now())
}
