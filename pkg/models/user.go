package models

import (
	"time"
)

type UserRequest struct {
	LastName  *string `json:"lastName" validate:"required,min=1,max=100"`
	FirstName *string `json:"firstName" validate:"required,min=1,max=100"`
	Email     *string `json:"email" validate:"required,email"`
	Password  *string `json:"password" validate:"required,min=8,max=72"`
}

type User struct {
	ID           int       `json:"id" db:"id"`
	LastName     string    `json:"lastName" db:"last_name"`
	FirstName    string    `json:"firstName" db:"first_name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	TelegramID   *int64    `json:"-" db:"telegram_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LinkCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
	DeepLink  string    `json:"deepLink,omitempty"`
}
