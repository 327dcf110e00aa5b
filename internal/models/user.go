package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Nickname     string    `db:"nickname" json:"nickname"`
	Email        string    `db:"email" json:"email"`
	PhoneNumber  string    `db:"phone_number" json:"phoneNumber"`
	Avatar       string    `db:"avatar" json:"avatar"`
	IsFrozen     bool      `db:"is_frozen" json:"isFrozen"`
	IsAdmin      bool      `db:"is_admin" json:"isAdmin"`
	CreatedAt    time.Time `db:"created_at" json:"createTime"`
	UpdatedAt    time.Time `db:"updated_at" json:"updateTime"`

	// Populated by the repository join, not by a column scan.
	Roles []Role `db:"-" json:"roles,omitempty"`
}

// Role is a named bundle of permissions assignable to a user.
type Role struct {
	ID          int64        `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Permissions []Permission `db:"-" json:"permissions,omitempty"`
}

// Permission identifies one authorizable capability by code.
type Permission struct {
	ID          int64  `db:"id" json:"id"`
	Code        string `db:"code" json:"code"`
	Description string `db:"description" json:"description"`
}

// RoleNames returns the names of the user's roles in assignment order.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// PermissionCodes flattens the user's roles into a deduplicated list of
// permission codes. Two roles granting the same code contribute one entry.
func (u *User) PermissionCodes() []string {
	seen := make(map[string]struct{})
	codes := make([]string, 0)
	for _, r := range u.Roles {
		for _, p := range r.Permissions {
			if _, ok := seen[p.Code]; ok {
				continue
			}
			seen[p.Code] = struct{}{}
			codes = append(codes, p.Code)
		}
	}
	return codes
}

// Claims is the identity payload embedded in both access and refresh tokens.
type Claims struct {
	UserID      int64    `json:"userId"`
	Username    string   `json:"username"`
	Nickname    string   `json:"nickname"`
	Email       string   `json:"email"`
	IsAdmin     bool     `json:"isAdmin"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// HasPermission reports whether the claim set contains the given code.
func (c *Claims) HasPermission(code string) bool {
	for _, p := range c.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

// NewClaims assembles the identity claim set from a persisted user.
func NewClaims(u *User) *Claims {
	return &Claims{
		UserID:      u.ID,
		Username:    u.Username,
		Nickname:    u.Nickname,
		Email:       u.Email,
		IsAdmin:     u.IsAdmin,
		Roles:       u.RoleNames(),
		Permissions: u.PermissionCodes(),
	}
}
