package domain

import "time"

// Session represents an authenticated user session. The copilot core only
// resolves a session token to an owner ID; session creation and renewal
// belong to the auth layer of the main application.
type Session struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the session has expired at the given time.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// ValidateSession validates a Session instance
func ValidateSession(s *Session) error {
	if s == nil {
		return NewDomainError(ErrCodeValidation, "session cannot be nil")
	}
	if s.ID == "" {
		return NewDomainError(ErrCodeValidation, "session ID is required")
	}
	if s.Token == "" {
		return NewDomainError(ErrCodeValidation, "session token is required")
	}
	if s.UserID == "" {
		return NewDomainError(ErrCodeValidation, "session user ID is required")
	}
	if s.ExpiresAt.IsZero() {
		return NewDomainError(ErrCodeValidation, "session expiry is required")
	}
	return nil
}
