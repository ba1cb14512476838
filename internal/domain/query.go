package domain

import (
	"encoding/json"
	"time"
)

// QueryType distinguishes real-time from historical weather queries.
type QueryType string

const (
	QueryTiempoReal QueryType = "tiempo_real"
	QueryHistorico  QueryType = "historico"
)

// QueryState is the lifecycle state of a query.
//
// pendiente -> procesando -> {completada | error}
//
// completada and error are terminal; there is no transition out of either.
// A failed query is never retried in place, the caller issues a new one.
type QueryState string

const (
	StatePendiente  QueryState = "pendiente"
	StateProcesando QueryState = "procesando"
	StateCompletada QueryState = "completada"
	StateError      QueryState = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s QueryState) Terminal() bool {
	return s == StateCompletada || s == StateError
}

// ExportFormat names a supported download format.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatTXT  ExportFormat = "txt"
	FormatYAML ExportFormat = "yaml"
)

// Query records one user-initiated weather request and its lifecycle.
type Query struct {
	ID          string       `json:"id"` // UUID
	UserID      string       `json:"-"`
	Type        QueryType    `json:"tipo_consulta"`
	City        string       `json:"ciudad,omitempty"`
	Latitude    *float64     `json:"latitud,omitempty"`
	Longitude   *float64     `json:"longitud,omitempty"`
	StartDate   *time.Time   `json:"fecha_inicio,omitempty"`
	EndDate     *time.Time   `json:"fecha_fin,omitempty"`
	Parameters  []string     `json:"parametros_solicitados,omitempty"`
	Format      ExportFormat `json:"formato_salida"`
	State       QueryState   `json:"estado"`
	ErrorMsg    string       `json:"mensaje_error,omitempty"`
	LatencyMS   int64        `json:"tiempo_respuesta_ms,omitempty"`
	OriginIP    string       `json:"-"`
	CreatedAt   time.Time    `json:"creada_en"`
	CompletedAt *time.Time   `json:"completada_en,omitempty"`
}

// Result is the single materialized snapshot of a completed query.
// A query has at most one result, created exactly once on completion.
type Result struct {
	ID            string          `json:"id"` // UUID
	QueryID       string          `json:"-"`
	TempAvg       float64         `json:"temperatura_promedio"`
	TempMin       float64         `json:"temperatura_min"`
	TempMax       float64         `json:"temperatura_max"`
	Pressure      float64         `json:"presion_atmosferica"`
	Humidity      float64         `json:"humedad_relativa"`
	WindSpeed     float64         `json:"velocidad_viento"`
	WindDirection float64         `json:"direccion_viento"`
	Precipitation float64         `json:"precipitacion"`
	Description   string          `json:"descripcion_clima"`
	Sources       []string        `json:"fuentes_utilizadas"`
	Raw           json.RawMessage `json:"datos_completos,omitempty"`
	CreatedAt     time.Time       `json:"-"`
}

// QueryFilter narrows a listing; zero values mean "no filter".
type QueryFilter struct {
	Type  QueryType
	State QueryState
}

// QueryPage is one page of a user's query history, newest first.
type QueryPage struct {
	Queries []*Query `json:"consultas"`
	Total   int      `json:"total"`
	Pages   int      `json:"pages"`
	Page    int      `json:"current_page"`
	PerPage int      `json:"per_page"`
}

// QueryRepository defines data access for queries and their results
type QueryRepository interface {
	Create(q *Query) error
	// GetByIDAndOwner returns ErrNotFound for both a missing query and one
	// owned by a different user.
	GetByIDAndOwner(id, userID string) (*Query, error)
	GetResult(queryID string) (*Result, error)
	// Start moves the query from pendiente to procesando. Returns
	// ErrInvalidState if it is not in pendiente.
	Start(queryID string) error
	// Complete atomically attaches the result and moves the query from
	// procesando to completada. Returns ErrInvalidState if the query is not
	// in procesando (already completed, failed, or missing).
	Complete(queryID string, result *Result, completedAt time.Time, latencyMS int64) error
	// Fail moves the query from procesando to error with a message, under
	// the same terminal-state guard as Complete.
	Fail(queryID, message string) error
	List(userID string, filter QueryFilter, page, perPage int) (*QueryPage, error)
}
