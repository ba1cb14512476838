package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
	"github.com/ParadojaDevs/ClimaGuru/internal/export"
	"github.com/ParadojaDevs/ClimaGuru/internal/featureflags"
	"github.com/ParadojaDevs/ClimaGuru/internal/observability/metrics"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/audit"
	"github.com/ParadojaDevs/ClimaGuru/internal/weather"
	"github.com/ParadojaDevs/ClimaGuru/internal/weather/providers"
)

// fetchTimeout bounds the total time spent talking to weather providers for
// one query. The query is failed, not left in procesando, when it elapses.
const fetchTimeout = 10 * time.Second

// maxHistoryDays bounds the span of a historical query.
const maxHistoryDays = 365

// maxPerPage caps the page size of history listings.
const maxPerPage = 100

var exportFormats = map[domain.ExportFormat]bool{
	domain.FormatJSON: true,
	domain.FormatCSV:  true,
	domain.FormatTXT:  true,
	domain.FormatYAML: true,
}

// QueryRequest carries the fields accepted when creating a query.
type QueryRequest struct {
	City       string   `json:"ciudad"`
	Latitude   *float64 `json:"latitud" validate:"omitempty,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitud" validate:"omitempty,gte=-180,lte=180"`
	StartDate  string   `json:"fecha_inicio"` // YYYY-MM-DD, historical only
	EndDate    string   `json:"fecha_fin"`    // YYYY-MM-DD, historical only
	Parameters []string `json:"parametros_solicitados"`
	Format     string   `json:"formato_salida"`
}

// QueryWithResult pairs a query with its result snapshot, when one exists.
type QueryWithResult struct {
	Query  *domain.Query  `json:"consulta"`
	Result *domain.Result `json:"resultado,omitempty"`
}

// credentialSource resolves a user's decrypted API key for a provider.
type credentialSource interface {
	ActiveKey(userID, provider string) (string, error)
}

// QueryService orchestrates the query lifecycle: validate, persist in
// procesando, fetch from every available provider, aggregate, and finalize.
// Processing is synchronous; the caller gets the terminal state in the
// response.
type QueryService struct {
	queries     domain.QueryRepository
	credentials credentialSource
	httpClient  *http.Client
	auditor     *audit.Recorder
	logger      *slog.Logger
}

// NewQueryService creates a new query service
func NewQueryService(
	queries domain.QueryRepository,
	credentials credentialSource,
	httpClient *http.Client,
	auditor *audit.Recorder,
	logger *slog.Logger,
) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		queries:     queries,
		credentials: credentials,
		httpClient:  httpClient,
		auditor:     auditor,
		logger:      logger,
	}
}

// CreateCurrent runs a real-time weather query end to end.
func (s *QueryService) CreateCurrent(ctx context.Context, userID string, req QueryRequest, ip string) (*QueryWithResult, error) {
	q, err := s.newQuery(userID, domain.QueryTiempoReal, req, ip)
	if err != nil {
		return nil, err
	}
	if err := s.begin(q); err != nil {
		return nil, err
	}

	start := time.Now()
	obs, err := s.fetchCurrent(ctx, userID, locationOf(q))
	return s.finalize(q, obs, err, start, ip)
}

// CreateHistorical runs a historical weather query end to end.
func (s *QueryService) CreateHistorical(ctx context.Context, userID string, req QueryRequest, ip string) (*QueryWithResult, error) {
	q, err := s.newQuery(userID, domain.QueryHistorico, req, ip)
	if err != nil {
		return nil, err
	}
	if err := s.begin(q); err != nil {
		return nil, err
	}

	start := time.Now()
	obs, err := s.fetchHistory(ctx, userID, locationOf(q), *q.StartDate, *q.EndDate)
	return s.finalize(q, obs, err, start, ip)
}

// Get returns one query without its result.
func (s *QueryService) Get(userID, id string) (*domain.Query, error) {
	return s.queries.GetByIDAndOwner(id, userID)
}

// GetWithResult returns a query and, for completed ones, its result.
func (s *QueryService) GetWithResult(userID, id string) (*QueryWithResult, error) {
	q, err := s.queries.GetByIDAndOwner(id, userID)
	if err != nil {
		return nil, err
	}

	out := &QueryWithResult{Query: q}
	if q.State == domain.StateCompletada {
		result, err := s.queries.GetResult(q.ID)
		if err != nil && !errors.Is(err, domain.ErrNoData) {
			return nil, err
		}
		out.Result = result
	}
	return out, nil
}

// List returns one page of the user's query history. The page size is capped
// server-side no matter what the client asked for.
func (s *QueryService) List(userID string, filter domain.QueryFilter, page, perPage int) (*domain.QueryPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return s.queries.List(userID, filter, page, perPage)
}

// Download renders a completed query's result in the requested format. An
// empty format falls back to the format chosen at creation.
func (s *QueryService) Download(userID, id string, format domain.ExportFormat) (*export.Document, error) {
	q, err := s.queries.GetByIDAndOwner(id, userID)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = q.Format
	}
	if !exportFormats[format] {
		return nil, domain.ErrUnsupportedFormat
	}

	var result *domain.Result
	if q.State == domain.StateCompletada {
		result, err = s.queries.GetResult(q.ID)
		if err != nil && !errors.Is(err, domain.ErrNoData) {
			return nil, err
		}
	}

	doc, err := export.Format(q, result, format)
	if err != nil {
		return nil, err
	}
	metrics.ObserveExport(string(format))
	return doc, nil
}

// newQuery validates the request and builds the query in pendiente.
func (s *QueryService) newQuery(userID string, qt domain.QueryType, req QueryRequest, ip string) (*domain.Query, error) {
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	city := strings.TrimSpace(req.City)
	hasCoords := req.Latitude != nil && req.Longitude != nil
	if city == "" && !hasCoords {
		return nil, fmt.Errorf("%w: se requiere ciudad o coordenadas", domain.ErrValidation)
	}

	format := domain.ExportFormat(strings.ToLower(strings.TrimSpace(req.Format)))
	if format == "" {
		format = domain.FormatJSON
	}
	if !exportFormats[format] {
		return nil, fmt.Errorf("%w: formato de salida no soportado: %s", domain.ErrValidation, req.Format)
	}

	q := &domain.Query{
		UserID:     userID,
		Type:       qt,
		City:       city,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Parameters: req.Parameters,
		Format:     format,
		State:      domain.StatePendiente,
		OriginIP:   ip,
	}

	if qt == domain.QueryHistorico {
		from, to, err := parseDateRange(req.StartDate, req.EndDate)
		if err != nil {
			return nil, err
		}
		q.StartDate = &from
		q.EndDate = &to
	}

	return q, nil
}

// begin persists the query in pendiente and immediately claims it for
// processing. The two steps stay separate so the lifecycle guard in the
// repository sees every transition.
func (s *QueryService) begin(q *domain.Query) error {
	if err := s.queries.Create(q); err != nil {
		return err
	}
	if err := s.queries.Start(q.ID); err != nil {
		return err
	}
	q.State = domain.StateProcesando
	return nil
}

// finalize moves the query to its terminal state and persists the outcome.
func (s *QueryService) finalize(q *domain.Query, obs weather.Observation, fetchErr error, start time.Time, ip string) (*QueryWithResult, error) {
	elapsed := time.Since(start)

	if fetchErr != nil {
		if err := s.queries.Fail(q.ID, fetchErr.Error()); err != nil {
			s.logger.Error("failed to mark query as error",
				slog.String("query_id", q.ID),
				slog.String("error", err.Error()),
			)
		}
		q.State = domain.StateError
		q.ErrorMsg = fetchErr.Error()
		metrics.ObserveQuery(string(q.Type), string(domain.StateError), elapsed)
		s.record(q, "consulta_fallida", ip)
		return &QueryWithResult{Query: q}, nil
	}

	raw, err := json.Marshal(obs.Readings)
	if err != nil {
		raw = nil
	}
	result := &domain.Result{
		TempAvg:       obs.TempAvg,
		TempMin:       obs.TempMin,
		TempMax:       obs.TempMax,
		Pressure:      obs.Pressure,
		Humidity:      obs.Humidity,
		WindSpeed:     obs.WindSpeed,
		WindDirection: obs.WindDirection,
		Precipitation: obs.Precipitation,
		Description:   obs.Description,
		Sources:       obs.Sources,
		Raw:           raw,
	}

	completedAt := time.Now().UTC()
	if err := s.queries.Complete(q.ID, result, completedAt, elapsed.Milliseconds()); err != nil {
		return nil, err
	}
	q.State = domain.StateCompletada
	q.CompletedAt = &completedAt
	q.LatencyMS = elapsed.Milliseconds()

	metrics.ObserveQuery(string(q.Type), string(domain.StateCompletada), elapsed)
	s.record(q, "consulta_completada", ip)
	return &QueryWithResult{Query: q, Result: result}, nil
}

// fetchCurrent queries every available provider concurrently and aggregates
// whatever succeeded. It fails only when no provider returned a reading.
func (s *QueryService) fetchCurrent(ctx context.Context, userID string, loc weather.Location) (weather.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	provs := s.availableProviders(userID, loc)
	if len(provs) == 0 {
		return weather.Observation{}, errors.New("ningún proveedor disponible para la ubicación")
	}

	var (
		mu       sync.Mutex
		readings []weather.Reading
		wg       sync.WaitGroup
	)
	for _, p := range provs {
		wg.Add(1)
		go func(p weather.Provider) {
			defer wg.Done()
			r, err := p.Current(ctx, loc)
			if err != nil {
				metrics.ObserveProviderFetch(p.Name(), "error")
				s.logger.Warn("provider fetch failed",
					slog.String("provider", p.Name()),
					slog.String("error", err.Error()),
				)
				return
			}
			metrics.ObserveProviderFetch(p.Name(), "success")
			mu.Lock()
			readings = append(readings, r)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	if len(readings) == 0 {
		return weather.Observation{}, errors.New("todos los proveedores fallaron")
	}
	return weather.Aggregate(readings), nil
}

// fetchHistory uses the first historical provider that succeeds. Historical
// data is daily; mixing providers with different day grids would double-count
// days, so one source is used per query.
func (s *QueryService) fetchHistory(ctx context.Context, userID string, loc weather.Location, from, to time.Time) (weather.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var lastErr error
	for _, p := range s.availableProviders(userID, loc) {
		hp, ok := p.(weather.HistoricalProvider)
		if !ok {
			continue
		}
		readings, err := hp.History(ctx, loc, from, to)
		if err != nil {
			metrics.ObserveProviderFetch(p.Name(), "error")
			lastErr = err
			continue
		}
		if len(readings) == 0 {
			lastErr = fmt.Errorf("%s: sin datos para el rango", p.Name())
			continue
		}
		metrics.ObserveProviderFetch(p.Name(), "success")
		return weather.Aggregate(readings), nil
	}

	if lastErr == nil {
		lastErr = errors.New("ningún proveedor histórico disponible")
	}
	return weather.Observation{}, lastErr
}

// availableProviders builds the provider set for one query: keyed providers
// for which the user stored an active credential, the keyless open provider,
// and the simulated provider when its flag is on.
func (s *QueryService) availableProviders(userID string, loc weather.Location) []weather.Provider {
	var provs []weather.Provider

	if key, err := s.credentials.ActiveKey(userID, "openweathermap"); err == nil {
		provs = append(provs, providers.NewOpenWeather(s.httpClient, key))
	}
	if key, err := s.credentials.ActiveKey(userID, "weatherapi"); err == nil {
		provs = append(provs, providers.NewWeatherAPI(s.httpClient, key))
	}
	if loc.HasCoordinates() {
		provs = append(provs, providers.NewOpenMeteo(s.httpClient))
	}
	if featureflags.Enabled("simulated_weather") {
		provs = append(provs, providers.NewSimulated())
	}

	return provs
}

func (s *QueryService) record(q *domain.Query, action, ip string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(q.UserID, action, map[string]any{
		"consulta_id": q.ID,
		"tipo":        string(q.Type),
		"estado":      string(q.State),
	}, ip)
}

func locationOf(q *domain.Query) weather.Location {
	return weather.Location{City: q.City, Latitude: q.Latitude, Longitude: q.Longitude}
}

// parseDateRange validates the historical date range: well-formed dates,
// start not after end, end not in the future, span within a year.
func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: fecha_inicio y fecha_fin son requeridas", domain.ErrValidation)
	}
	from, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: fecha_inicio inválida", domain.ErrValidation)
	}
	to, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: fecha_fin inválida", domain.ErrValidation)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: fecha_inicio posterior a fecha_fin", domain.ErrValidation)
	}
	if to.After(time.Now().UTC()) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: fecha_fin no puede ser futura", domain.ErrValidation)
	}
	if to.Sub(from) > maxHistoryDays*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: el rango no puede superar %d días", domain.ErrValidation, maxHistoryDays)
	}
	return from, to, nil
}
