package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
)

// PostgresActivityRepository implements domain.ActivityRepository using
// PostgreSQL. The log is append-only; there is deliberately no update or
// delete path.
type PostgresActivityRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresActivityRepository creates a new activity repository
func NewPostgresActivityRepository(db *sql.DB, logger *slog.Logger) *PostgresActivityRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresActivityRepository{db: db, logger: logger}
}

// Insert appends one activity entry
func (r *PostgresActivityRepository) Insert(entry *domain.ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	var detail []byte
	if entry.Detail != nil {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode activity detail: %w", err)
		}
	}

	query := `
		INSERT INTO logs_actividad (id, usuario_id, accion, detalle, ip_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING fecha
	`

	err := r.db.QueryRow(
		query,
		entry.ID,
		nullString(entry.UserID),
		entry.Action,
		detail,
		nullString(entry.IPAddress),
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity entry: %w", err)
	}

	return nil
}
