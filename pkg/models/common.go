package models

import (
	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleAdmin  = `admin`
	RoleMember = `member`
)

type Claims struct {
	jwt.RegisteredClaims
	UserID int    `json:"userID"`
	Role   string `json:"role"`
}

type TokenResponse struct {
	Token string `json:"token"`
}
