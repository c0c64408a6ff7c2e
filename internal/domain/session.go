package domain

import "time"

// Session is proof of an authenticated identity.
type Session struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	Provider    string    `json:"provider,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the session carries an identity that has not expired at now.
// A zero ExpiresAt means the backend did not announce an expiry.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.UserID == "" || s.AccessToken == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// Clone returns a copy safe to hand to other components.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// AuthEvent names an authentication state transition.
type AuthEvent string

const (
	AuthInitialSession AuthEvent = "INITIAL_SESSION"
	AuthSignedIn       AuthEvent = "SIGNED_IN"
	AuthSignedOut      AuthEvent = "SIGNED_OUT"
	AuthTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)
