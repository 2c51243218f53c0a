// Package session models the client's view of the authentication session and
// decides which route group the user may occupy.
package session

import (
	"errors"
	"time"
)

// Status is the authentication state reported by the auth collaborator.
type Status int

const (
	// StatusUnknown is the state at process start, before the first answer.
	StatusUnknown Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	}
	return "invalid"
}

// ErrMissingUserID is returned when an authenticated session is built without a user.
var ErrMissingUserID = errors.New("authenticated session requires a user id")

// Session is an immutable snapshot of the authentication state.
// UserID is set if and only if Status is StatusAuthenticated.
type Session struct {
	Status      Status
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
}

// Unknown is the session before the auth collaborator has answered.
func Unknown() Session {
	return Session{Status: StatusUnknown}
}

// Unauthenticated is the signed-out session.
func Unauthenticated() Session {
	return Session{Status: StatusUnauthenticated}
}

// Authenticated builds a signed-in session for userID.
func Authenticated(userID, accessToken string, expiresAt time.Time) (Session, error) {
	if userID == "" {
		return Session{}, ErrMissingUserID
	}
	return Session{
		Status:      StatusAuthenticated,
		UserID:      userID,
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
	}, nil
}

// Valid reports whether s honours the userId-iff-authenticated invariant.
func (s Session) Valid() bool {
	switch s.Status {
	case StatusAuthenticated:
		return s.UserID != ""
	case StatusUnknown, StatusUnauthenticated:
		return s.UserID == "" && s.AccessToken == ""
	}
	return false
}

// IsAuthenticated reports whether s is a valid signed-in session.
func (s Session) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.UserID != ""
}
