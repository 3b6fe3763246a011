package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
)

// CreateGroup makes the actor the group's first leader.
func (s *ScheduleService) CreateGroup(ctx context.Context, actorID int, req models.GroupRequest) (models.Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		vErr := models.NewValidationError()
		vErr.Add("name", "is required")
		return models.Group{}, vErr
	}
	group, err := s.store.CreateGroup(ctx, models.Group{
		Name:        name,
		Description: trimmed(req.Description),
		CreatedBy:   actorID,
	})
	if err != nil {
		return models.Group{}, fmt.Errorf("err creating group: %w", err)
	}
	return group, nil
}

func (s *ScheduleService) AddMember(ctx context.Context, actorID, groupID int, req models.MemberRequest) (models.GroupMember, error) {
	actor, err := s.membership(ctx, groupID, actorID)
	if err != nil {
		return models.GroupMember{}, err
	}
	if !actor.IsLeader() {
		return models.GroupMember{}, fmt.Errorf("only a group leader can add members: %w", models.ErrForbidden)
	}
	role := req.Role
	if role == "" {
		role = models.GroupRoleMember
	}
	if role != models.GroupRoleLeader && role != models.GroupRoleMember {
		vErr := models.NewValidationError()
		vErr.Add("role", "must be leader or member")
		return models.GroupMember{}, vErr
	}
	return s.store.AddMember(ctx, groupID, req.UserID, role)
}

func (s *ScheduleService) ListMembers(ctx context.Context, actorID, groupID int) ([]models.GroupMember, error) {
	if _, err := s.membership(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}
