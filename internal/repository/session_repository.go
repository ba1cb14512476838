package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
)

// PostgresSessionRepository implements domain.SessionRepository using PostgreSQL
type PostgresSessionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSessionRepository creates a new session repository
func NewPostgresSessionRepository(db *sql.DB, logger *slog.Logger) *PostgresSessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSessionRepository{db: db, logger: logger}
}

// Create inserts a session
func (r *PostgresSessionRepository) Create(session *domain.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	query := `
		INSERT INTO sesiones (id, usuario_id, token, ip_address, user_agent, fecha_expiracion, activa)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING fecha_creacion
	`

	err := r.db.QueryRow(
		query,
		session.ID,
		session.UserID,
		session.Token,
		nullString(session.IPAddress),
		nullString(session.UserAgent),
		session.ExpiresAt,
		session.Active,
	).Scan(&session.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		r.logger.Error("failed to create session",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByToken retrieves a session by its token id
func (r *PostgresSessionRepository) GetByToken(token string) (*domain.Session, error) {
	query := `
		SELECT id, usuario_id, token, ip_address, user_agent, fecha_creacion, fecha_expiracion, activa
		FROM sesiones
		WHERE token = $1
	`

	session := &domain.Session{}
	var ip, agent sql.NullString

	err := r.db.QueryRow(query, token).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&ip,
		&agent,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.IPAddress = ip.String
	session.UserAgent = agent.String
	return session, nil
}

// Revoke marks a session inactive. Idempotent: missing or already revoked
// tokens are not errors.
func (r *PostgresSessionRepository) Revoke(token string) error {
	if _, err := r.db.Exec(`UPDATE sesiones SET activa = false WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// DeactivateExpired flips active off for sessions past their expiry
func (r *PostgresSessionRepository) DeactivateExpired(now time.Time) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE sesiones SET activa = false
		WHERE activa = true AND fecha_expiracion <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired sessions: %w", err)
	}
	return result.RowsAffected()
}
