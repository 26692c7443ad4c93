package model

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// ParseRole accepts a role name in any case.  The boolean is false for
// anything outside the known set.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleCustomer:
		return RoleCustomer, true
	}
	return "", false
}

// User represents an account as stored in the `users` table.
//
// Fields:
//  ID            – opaque UUID primary key.
//  Email         – unique email address.
//  AccountNumber – unique billing account number.
//  FirstName     – given name.
//  LastName      – family name.
//  PasswordHash  – bcrypt hash; nil for users provisioned by a bulk import
//                  who have not been given a password yet.
//  Role          – ADMIN or CUSTOMER.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type User struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	Email         string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	AccountNumber string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	FirstName     string    `gorm:"type:varchar(100);not null"`
	LastName      string    `gorm:"type:varchar(100);not null"`
	PasswordHash  *string   `gorm:"type:varchar(255)"`
	Role          Role      `gorm:"type:varchar(16);not null;default:CUSTOMER"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

// HasPassword reports whether the user can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UserView is the sanitized representation returned by the API.  It never
// carries the password hash.
type UserView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Role          Role      `json:"role"`
	AccountNumber string    `json:"account_number"`
	HasPassword   bool      `json:"has_password"`
	CreatedAt     time.Time `json:"created_at"`
	InvoiceCount  *int64    `json:"invoice_count,omitempty"`
}

// View strips credentials from u.
func (u *User) View() UserView {
	return UserView{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          u.Role,
		AccountNumber: u.AccountNumber,
		HasPassword:   u.HasPassword(),
		CreatedAt:     u.CreatedAt,
	}
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA‑256 hex digest.
type RefreshToken struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);index;not null"`
	TokenHash string    `gorm:"type:char(64);uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
	User      *User `gorm:"constraint:OnDelete:CASCADE"`
}

// Viewer is the authenticated caller a query or mutation runs on behalf of.
type Viewer struct {
	ID            string
	Email         string
	Role          Role
	AccountNumber string
}

// IsAdmin reports whether v may see and change every record.
func (v Viewer) IsAdmin() bool {
	switch v.Role {
	case RoleAdmin:
		return true
	case RoleCustomer:
		return false
	}
	return false
}
