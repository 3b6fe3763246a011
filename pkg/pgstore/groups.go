package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pershin-daniil/PrayerPipeline/pkg/models"
)

const memberColumns = `gm.group_id, gm.user_id, gm.role, gm.joined_at, u.first_name, u.last_name, u.telegram_id`

// CreateGroup inserts the group and makes its creator the first leader.
func (s *Store) CreateGroup(ctx context.Context, group models.Group) (models.Group, error) {
	var created models.Group
	err := s.InTx(ctx, func(tx *Store) error {
		if err := tx.write("create_group", func() error {
			return sqlx.GetContext(ctx, tx.ext, &created, `
INSERT INTO groups (name, description, created_by)
VALUES ($1, $2, $3)
RETURNING *;`, group.Name, group.Description, group.CreatedBy)
		}); err != nil {
			return err
		}
		_, err := tx.AddMember(ctx, created.ID, group.CreatedBy, models.GroupRoleLeader)
		return err
	})
	if err != nil {
		return models.Group{}, fmt.Errorf("err creating group: %w", err)
	}
	return created, nil
}

func (s *Store) GetGroup(ctx context.Context, id int) (models.Group, error) {
	var group models.Group
	err := s.read(ctx, "get_group", func() error {
		return sqlx.GetContext(ctx, s.ext, &group, `SELECT * FROM groups WHERE id = $1;`, id)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Group{}, models.ErrGroupNotFound
	case err != nil:
		return models.Group{}, fmt.Errorf("err getting group %d: %w", id, err)
	}
	return group, nil
}

// AddMember inserts a membership or changes the role of an existing one.
func (s *Store) AddMember(ctx context.Context, groupID, userID int, role string) (models.GroupMember, error) {
	err := s.write("add_member", func() error {
		_, err := s.ext.ExecContext(ctx, `
INSERT INTO group_members (group_id, user_id, role)
VALUES ($1, $2, $3)
ON CONFLICT (group_id, user_id) DO UPDATE SET role = excluded.role;`, groupID, userID, role)
		return err
	})
	if pgCode(err) == pgForeignKeyViolation {
		return models.GroupMember{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.GroupMember{}, fmt.Errorf("err adding member %d to group %d: %w", userID, groupID, err)
	}
	return s.GetMember(ctx, groupID, userID)
}

// GetMember returns models.ErrUserNotFound when userID is not in the group.
func (s *Store) GetMember(ctx context.Context, groupID, userID int) (models.GroupMember, error) {
	var member models.GroupMember
	query := `
SELECT ` + memberColumns + `
FROM group_members gm
JOIN users u ON u.id = gm.user_id
WHERE gm.group_id = $1 AND gm.user_id = $2;`
	err := s.read(ctx, "get_member", func() error {
		return sqlx.GetContext(ctx, s.ext, &member, query, groupID, userID)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.GroupMember{}, models.ErrUserNotFound
	case err != nil:
		return models.GroupMember{}, fmt.Errorf("err getting member %d of group %d: %w", userID, groupID, err)
	}
	return member, nil
}

func (s *Store) ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	members := make([]models.GroupMember, 0)
	query := `
SELECT ` + memberColumns + `
FROM group_members gm
JOIN users u ON u.id = gm.user_id
WHERE gm.group_id = $1
ORDER BY gm.joined_at, gm.user_id;`
	err := s.read(ctx, "list_members", func() error {
		members = members[:0]
		return sqlx.SelectContext(ctx, s.ext, &members, query, groupID)
	})
	if err != nil {
		return nil, fmt.Errorf("err listing members of group %d: %w", groupID, err)
	}
	return members, nil
}
