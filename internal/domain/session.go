package domain

import "time"

// Session tracks one issued access token. A session is valid iff it is still
// marked active and its expiry is in the future; both conditions are checked,
// an active flag alone is not enough.
type Session struct {
	ID        string    `json:"id"` // UUID
	UserID    string    `json:"-"`
	Token     string    `json:"-"` // JWT ID (jti), not the raw token
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"-"`
	CreatedAt time.Time `json:"fecha_creacion"`
	ExpiresAt time.Time `json:"fecha_expiracion"`
	Active    bool      `json:"activa"`
}

// Valid reports whether the session can still authenticate requests at t.
func (s *Session) Valid(t time.Time) bool {
	return s.Active && t.Before(s.ExpiresAt)
}

// SessionRepository defines data access for sessions
type SessionRepository interface {
	Create(session *Session) error
	GetByToken(token string) (*Session, error)
	// Revoke marks the session inactive. Revoking a missing or already
	// revoked token is not an error.
	Revoke(token string) error
	// DeactivateExpired flips active off for sessions past their expiry and
	// returns how many rows changed.
	DeactivateExpired(now time.Time) (int64, error)
}
