package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
)

// maxPageSize caps list page sizes server-side, regardless of the request.
const maxPageSize = 100

// PostgresQueryRepository implements domain.QueryRepository using PostgreSQL.
// Complete and Fail guard the lifecycle in SQL: the UPDATE only matches rows
// still in procesando, so a terminal query can never be moved again and a
// result can never be attached twice (backed by the unique consulta_id on
// datos_meteorologicos).
type PostgresQueryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresQueryRepository creates a new query repository
func NewPostgresQueryRepository(db *sql.DB, logger *slog.Logger) *PostgresQueryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresQueryRepository{db: db, logger: logger}
}

const queryColumns = `id, usuario_id, tipo_consulta, ciudad, latitud, longitud, fecha_inicio, fecha_fin,
	parametros_solicitados, formato_salida, estado, mensaje_error, tiempo_respuesta_ms, ip_origen,
	creada_en, completada_en`

// Create inserts a query in its initial state
func (r *PostgresQueryRepository) Create(q *domain.Query) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}

	params, err := marshalParams(q.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO consultas (id, usuario_id, tipo_consulta, ciudad, latitud, longitud,
			fecha_inicio, fecha_fin, parametros_solicitados, formato_salida, estado, ip_origen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING creada_en
	`

	err = r.db.QueryRow(
		query,
		q.ID,
		q.UserID,
		q.Type,
		nullString(q.City),
		q.Latitude,
		q.Longitude,
		q.StartDate,
		q.EndDate,
		params,
		q.Format,
		q.State,
		nullString(q.OriginIP),
	).Scan(&q.CreatedAt)

	if err != nil {
		r.logger.Error("failed to create query",
			slog.String("type", string(q.Type)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create query: %w", err)
	}

	return nil
}

// GetByIDAndOwner returns ErrNotFound for missing and not-owned alike
func (r *PostgresQueryRepository) GetByIDAndOwner(id, userID string) (*domain.Query, error) {
	query := `SELECT ` + queryColumns + ` FROM consultas WHERE id = $1 AND usuario_id = $2`

	q, err := r.scanRow(r.db.QueryRow(query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return q, nil
}

// GetResult fetches the result snapshot of a query, if one exists
func (r *PostgresQueryRepository) GetResult(queryID string) (*domain.Result, error) {
	query := `
		SELECT id, consulta_id, temperatura_promedio, temperatura_min, temperatura_max,
			presion_atmosferica, humedad_relativa, velocidad_viento, direccion_viento,
			precipitacion, descripcion_clima, fuentes_utilizadas, datos_completos, creado_en
		FROM datos_meteorologicos
		WHERE consulta_id = $1
	`

	res := &domain.Result{}
	var sources []byte
	var raw []byte
	var description sql.NullString

	err := r.db.QueryRow(query, queryID).Scan(
		&res.ID,
		&res.QueryID,
		&res.TempAvg,
		&res.TempMin,
		&res.TempMax,
		&res.Pressure,
		&res.Humidity,
		&res.WindSpeed,
		&res.WindDirection,
		&res.Precipitation,
		&description,
		&sources,
		&raw,
		&res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoData
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	res.Description = description.String
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &res.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode result sources: %w", err)
		}
	}
	res.Raw = raw
	return res, nil
}

// Start moves a query from pendiente to procesando
func (r *PostgresQueryRepository) Start(queryID string) error {
	res, err := r.db.Exec(`
		UPDATE consultas SET estado = $1 WHERE id = $2 AND estado = $3
	`, domain.StateProcesando, queryID, domain.StatePendiente)
	if err != nil {
		return fmt.Errorf("failed to start query: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// Complete atomically attaches the result and finalizes the query. The state
// guard lives in the UPDATE's WHERE clause; zero affected rows means the
// query was not in procesando and the whole transaction rolls back.
func (r *PostgresQueryRepository) Complete(queryID string, result *domain.Result, completedAt time.Time, latencyMS int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE consultas
		SET estado = $1, completada_en = $2, tiempo_respuesta_ms = $3
		WHERE id = $4 AND estado = $5
	`, domain.StateCompletada, completedAt, latencyMS, queryID, domain.StateProcesando)
	if err != nil {
		return fmt.Errorf("failed to complete query: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrInvalidState
	}

	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	result.QueryID = queryID

	sources, err := json.Marshal(result.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode result sources: %w", err)
	}
	raw := result.Raw
	if len(raw) == 0 {
		raw = []byte("null")
	}

	err = tx.QueryRow(`
		INSERT INTO datos_meteorologicos (id, consulta_id, temperatura_promedio, temperatura_min,
			temperatura_max, presion_atmosferica, humedad_relativa, velocidad_viento,
			direccion_viento, precipitacion, descripcion_clima, fuentes_utilizadas, datos_completos)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING creado_en
	`,
		result.ID,
		result.QueryID,
		result.TempAvg,
		result.TempMin,
		result.TempMax,
		result.Pressure,
		result.Humidity,
		result.WindSpeed,
		result.WindDirection,
		result.Precipitation,
		nullString(result.Description),
		sources,
		raw,
	).Scan(&result.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvalidState
		}
		return fmt.Errorf("failed to insert result: %w", err)
	}

	return tx.Commit()
}

// Fail moves a query from procesando to error with a message
func (r *PostgresQueryRepository) Fail(queryID, message string) error {
	res, err := r.db.Exec(`
		UPDATE consultas
		SET estado = $1, mensaje_error = $2, completada_en = now()
		WHERE id = $3 AND estado = $4
	`, domain.StateError, message, queryID, domain.StateProcesando)
	if err != nil {
		return fmt.Errorf("failed to fail query: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// List returns one page of a user's queries, newest first
func (r *PostgresQueryRepository) List(userID string, filter domain.QueryFilter, page, perPage int) (*domain.QueryPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	where := `WHERE usuario_id = $1`
	args := []any{userID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(" AND tipo_consulta = $%d", len(args))
	}
	if filter.State != "" {
		args = append(args, filter.State)
		where += fmt.Sprintf(" AND estado = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(`SELECT count(*) FROM consultas `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count queries: %w", err)
	}

	args = append(args, perPage, (page-1)*perPage)
	listSQL := fmt.Sprintf(`SELECT %s FROM consultas %s ORDER BY creada_en DESC LIMIT $%d OFFSET $%d`,
		queryColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(listSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var queries []*domain.Query
	for rows.Next() {
		q, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pages := (total + perPage - 1) / perPage
	return &domain.QueryPage{
		Queries: queries,
		Total:   total,
		Pages:   pages,
		Page:    page,
		PerPage: perPage,
	}, nil
}

func (r *PostgresQueryRepository) scanRow(row rowScanner) (*domain.Query, error) {
	q := &domain.Query{}
	var city, errMsg, originIP sql.NullString
	var params []byte
	var latency sql.NullInt64
	var startDate, endDate, completedAt sql.NullTime

	err := row.Scan(
		&q.ID,
		&q.UserID,
		&q.Type,
		&city,
		&q.Latitude,
		&q.Longitude,
		&startDate,
		&endDate,
		&params,
		&q.Format,
		&q.State,
		&errMsg,
		&latency,
		&originIP,
		&q.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan query: %w", err)
	}

	q.City = city.String
	q.ErrorMsg = errMsg.String
	q.OriginIP = originIP.String
	q.LatencyMS = latency.Int64
	if startDate.Valid {
		t := startDate.Time
		q.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		q.EndDate = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		q.CompletedAt = &t
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &q.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode query parameters: %w", err)
		}
	}
	return q, nil
}

func marshalParams(params []string) ([]byte, error) {
	if params == nil {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query parameters: %w", err)
	}
	return data, nil
}
