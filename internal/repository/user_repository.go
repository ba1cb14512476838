package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
)

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserRepository{db: db, logger: logger}
}

const userColumns = `id, username, email, password_hash, nombre_completo, rol, activo, ultimo_acceso, fecha_registro, fecha_actualizacion`

// Create inserts a new user. Duplicate username or email surfaces as
// domain.ErrConflict.
func (r *PostgresUserRepository) Create(user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query := `
		INSERT INTO usuarios (id, username, email, password_hash, nombre_completo, rol, activo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING fecha_registro, fecha_actualizacion
	`

	err := r.db.QueryRow(
		query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		nullString(user.FullName),
		user.Role,
		user.Active,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		r.logger.Error("failed to create user",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE id = $1`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByUsername retrieves a user by username
func (r *PostgresUserRepository) GetByUsername(username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE username = $1`
	return r.scanOne(r.db.QueryRow(query, username))
}

// GetByEmail retrieves a user by email (case-insensitive)
func (r *PostgresUserRepository) GetByEmail(email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE lower(email) = lower($1)`
	return r.scanOne(r.db.QueryRow(query, email))
}

// GetByUsernameOrEmail resolves a login identifier against either column
func (r *PostgresUserRepository) GetByUsernameOrEmail(identifier string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM usuarios WHERE username = $1 OR lower(email) = lower($1)`
	return r.scanOne(r.db.QueryRow(query, identifier))
}

// Update rewrites the mutable user columns
func (r *PostgresUserRepository) Update(user *domain.User) error {
	query := `
		UPDATE usuarios
		SET email = $1, nombre_completo = $2, password_hash = $3, activo = $4,
		    fecha_actualizacion = now()
		WHERE id = $5
		RETURNING fecha_actualizacion
	`

	err := r.db.QueryRow(
		query,
		user.Email,
		nullString(user.FullName),
		user.PasswordHash,
		user.Active,
		user.ID,
	).Scan(&user.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// RecordLogin stamps the last-login timestamp
func (r *PostgresUserRepository) RecordLogin(id string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE usuarios SET ultimo_acceso = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
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

// Deactivate soft-deletes a user (sets activo to false)
func (r *PostgresUserRepository) Deactivate(id string) error {
	result, err := r.db.Exec(`UPDATE usuarios SET activo = false, fecha_actualizacion = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
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

func (r *PostgresUserRepository) scanOne(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var fullName sql.NullString
	var lastLogin sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&fullName,
		&user.Role,
		&user.Active,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.FullName = fullName.String
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
