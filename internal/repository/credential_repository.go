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

// PostgresCredentialRepository implements domain.CredentialRepository using
// PostgreSQL. The at-most-one-active-credential-per-(user, provider)
// invariant lives in a partial unique index, not application locking, so
// concurrent set calls from the same user cannot both succeed.
type PostgresCredentialRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresCredentialRepository creates a new credential repository
func NewPostgresCredentialRepository(db *sql.DB, logger *slog.Logger) *PostgresCredentialRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCredentialRepository{db: db, logger: logger}
}

const credentialColumns = `id, usuario_id, proveedor, api_key_encrypted, api_secret_encrypted, descripcion,
	activa, limite_consultas_diarias, consultas_realizadas_hoy, fecha_registro, fecha_actualizacion`

// Create inserts a new credential. A second active credential for the same
// (user, provider) pair violates the partial unique index and surfaces as
// domain.ErrConflict.
func (r *PostgresCredentialRepository) Create(cred *domain.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}

	query := `
		INSERT INTO api_keys (id, usuario_id, proveedor, api_key_encrypted, api_secret_encrypted,
			descripcion, activa, limite_consultas_diarias)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING fecha_registro, fecha_actualizacion
	`

	err := r.db.QueryRow(
		query,
		cred.ID,
		cred.UserID,
		cred.Provider,
		cred.EncryptedKey,
		nullString(cred.EncryptedSecret),
		nullString(cred.Description),
		cred.Active,
		cred.DailyLimit,
	).Scan(&cred.CreatedAt, &cred.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		r.logger.Error("failed to create credential",
			slog.String("provider", cred.Provider),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// GetByID retrieves a credential owned by the given user
func (r *PostgresCredentialRepository) GetByID(id, userID string) (*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM api_keys WHERE id = $1 AND usuario_id = $2`
	return r.scanOne(r.db.QueryRow(query, id, userID))
}

// GetActiveByProvider returns the active credential for (user, provider)
func (r *PostgresCredentialRepository) GetActiveByProvider(userID, provider string) (*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM api_keys
		WHERE usuario_id = $1 AND proveedor = $2 AND activa = true`
	return r.scanOne(r.db.QueryRow(query, userID, provider))
}

// ListByUser returns all credentials of a user, newest first
func (r *PostgresCredentialRepository) ListByUser(userID string) ([]*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM api_keys
		WHERE usuario_id = $1 ORDER BY fecha_registro DESC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*domain.Credential
	for rows.Next() {
		cred, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// Update rewrites the mutable credential columns
func (r *PostgresCredentialRepository) Update(cred *domain.Credential) error {
	query := `
		UPDATE api_keys
		SET api_key_encrypted = $1, api_secret_encrypted = $2, descripcion = $3,
		    activa = $4, limite_consultas_diarias = $5, fecha_actualizacion = now()
		WHERE id = $6 AND usuario_id = $7
		RETURNING fecha_actualizacion
	`

	err := r.db.QueryRow(
		query,
		cred.EncryptedKey,
		nullString(cred.EncryptedSecret),
		nullString(cred.Description),
		cred.Active,
		cred.DailyLimit,
		cred.ID,
		cred.UserID,
	).Scan(&cred.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("failed to update credential: %w", err)
	}

	return nil
}

// Delete removes a credential permanently
func (r *PostgresCredentialRepository) Delete(id, userID string) error {
	result, err := r.db.Exec(`DELETE FROM api_keys WHERE id = $1 AND usuario_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ResetDailyCounters zeroes used-today counters last touched before cutoff
func (r *PostgresCredentialRepository) ResetDailyCounters(before time.Time) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE api_keys
		SET consultas_realizadas_hoy = 0
		WHERE consultas_realizadas_hoy > 0 AND fecha_actualizacion < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily counters: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresCredentialRepository) scanOne(row *sql.Row) (*domain.Credential, error) {
	cred, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return cred, nil
}

func (r *PostgresCredentialRepository) scanRow(row rowScanner) (*domain.Credential, error) {
	cred := &domain.Credential{}
	var secret, description sql.NullString

	err := row.Scan(
		&cred.ID,
		&cred.UserID,
		&cred.Provider,
		&cred.EncryptedKey,
		&secret,
		&description,
		&cred.Active,
		&cred.DailyLimit,
		&cred.UsedToday,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}

	cred.EncryptedSecret = secret.String
	cred.Description = description.String
	return cred, nil
}
