package domain

import "time"

// Credential stores a user's API key for one weather provider. The key (and
// optional secondary secret) are AES-GCM encrypted at rest; plaintext never
// reaches the repository layer. At most one active credential may exist per
// (user, provider) pair, enforced by a partial unique index.
type Credential struct {
	ID              string    `json:"id"` // UUID
	UserID          string    `json:"-"`
	Provider        string    `json:"proveedor"`
	EncryptedKey    string    `json:"-"`
	EncryptedSecret string    `json:"-"` // empty when the provider needs no secret
	Description     string    `json:"descripcion,omitempty"`
	Active          bool      `json:"activa"`
	DailyLimit      int       `json:"limite_consultas_diarias"`
	UsedToday       int       `json:"consultas_realizadas_hoy"`
	CreatedAt       time.Time `json:"fecha_registro"`
	UpdatedAt       time.Time `json:"fecha_actualizacion"`
}

// CredentialRepository defines data access for provider credentials
type CredentialRepository interface {
	Create(cred *Credential) error
	GetByID(id, userID string) (*Credential, error)
	// GetActiveByProvider returns the active credential for (user, provider),
	// or ErrNotFound.
	GetActiveByProvider(userID, provider string) (*Credential, error)
	ListByUser(userID string) ([]*Credential, error)
	Update(cred *Credential) error
	// Delete removes the credential permanently.
	Delete(id, userID string) error
	// ResetDailyCounters zeroes used_today for rows last updated before the
	// given cutoff. Returns the number of rows reset.
	ResetDailyCounters(before time.Time) (int64, error)
}
