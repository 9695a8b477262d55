// Package auth implements dashboard sign-in: a two-state login context kept
// in the Redis session, a bcrypt credential check against stored users, and
// the middleware that guards every page except the login form.
package auth

import (
	"errors"
	"time"
)

var (
	// ErrDuplicateEmail is returned when creating a user whose email exists.
	ErrDuplicateEmail = errors.New("auth: email already registered")
	// ErrUserNotFound is returned by repositories for unknown emails.
	ErrUserNotFound = errors.New("auth: user not found")
)

// User represents an operator account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// DisplayName is the name shown in the page header.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
