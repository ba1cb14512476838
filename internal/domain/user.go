package domain

import "time"

// User represents a registered account. Users are never hard-deleted; Active
// is flipped off instead so historical queries keep a valid owner.
type User struct {
	ID           string     `json:"id"` // UUID
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"nombre_completo,omitempty"`
	Role         string     `json:"rol"`
	Active       bool       `json:"activo"`
	LastLoginAt  *time.Time `json:"ultimo_acceso,omitempty"`
	CreatedAt    time.Time  `json:"fecha_registro"`
	UpdatedAt    time.Time  `json:"-"`
}

// RoleUser is the default role assigned at registration.
const RoleUser = "usuario"

// UserRepository defines data access for users
type UserRepository interface {
	Create(user *User) error
	GetByID(id string) (*User, error)
	GetByUsername(username string) (*User, error)
	GetByEmail(email string) (*User, error)
	// GetByUsernameOrEmail resolves the login identifier against either
	// column. Email comparison is case-insensitive.
	GetByUsernameOrEmail(identifier string) (*User, error)
	Update(user *User) error
	// RecordLogin stamps last_login without touching other columns.
	RecordLogin(id string, at time.Time) error
	// Deactivate soft-deletes the user.
	Deactivate(id string) error
}
