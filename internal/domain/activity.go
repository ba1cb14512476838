package domain

import "time"

// ActivityEntry is one append-only audit record of a user action. Entries are
// never mutated or deleted.
type ActivityEntry struct {
	ID        string         `json:"id"` // UUID
	UserID    string         `json:"-"`
	Action    string         `json:"accion"`
	Detail    map[string]any `json:"detalle,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	CreatedAt time.Time      `json:"fecha"`
}

// ActivityRepository defines the append-only activity log
type ActivityRepository interface {
	Insert(entry *ActivityEntry) error
}
