// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// User is the only persisted entity: an account with its credential and
// current session state. Password and RefreshToken never leave the server.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null;size:64" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	FullName     string    `gorm:"column:full_name;not null" json:"fullname"`
	Avatar       string    `gorm:"not null" json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	Password     string    `gorm:"not null" json:"-"`
	RefreshToken *string   `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// Sanitized returns a copy with the credential and session fields cleared.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Password = ""
	out.RefreshToken = nil
	return &out
}

// NormalizeIdentifier lowercases and trims a username or email.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
