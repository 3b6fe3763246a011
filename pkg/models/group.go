package models

import "time"

const (
	GroupRoleLeader = `leader`
	GroupRoleMember = `member`
)

type GroupRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type Group struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedBy   int       `json:"createdBy" db:"created_by"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type MemberRequest struct {
	UserID int    `json:"userId" validate:"required,min=1"`
	Role   string `json:"role" validate:"omitempty,oneof=leader member"`
}

type GroupMember struct {
	GroupID    int       `json:"groupId" db:"group_id"`
	UserID     int       `json:"userId" db:"user_id"`
	Role       string    `json:"role" db:"role"`
	FirstName  string    `json:"firstName" db:"first_name"`
	LastName   string    `json:"lastName" db:"last_name"`
	TelegramID *int64    `json:"-" db:"telegram_id"`
	JoinedAt   time.Time `json:"joinedAt" db:"joined_at"`
}

func (m GroupMember) IsLeader() bool {
	return m.Role == GroupRoleLeader
}
