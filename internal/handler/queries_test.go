package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/auth"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/middleware"
	"github.com/ParadojaDevs/ClimaGuru/internal/service"
)

// stubQueryRepo is the minimal in-memory repository the query endpoints need.
type stubQueryRepo struct {
	queries map[string]*domain.Query
	results map[string]*domain.Result
	seq     int
}

func newStubQueryRepo() *stubQueryRepo {
	return &stubQueryRepo{
		queries: make(map[string]*domain.Query),
		results: make(map[string]*domain.Result),
	}
}

func (r *stubQueryRepo) Create(q *domain.Query) error {
	r.seq++
	q.ID = fmt.Sprintf("q-%d", r.seq)
	q.CreatedAt = time.Now().UTC()
	stored := *q
	r.queries[q.ID] = &stored
	return nil
}

func (r *stubQueryRepo) GetByIDAndOwner(id, userID string) (*domain.Query, error) {
	q, ok := r.queries[id]
	if !ok || q.UserID != userID {
		return nil, domain.ErrNotFound
	}
	out := *q
	return &out, nil
}

func (r *stubQueryRepo) GetResult(queryID string) (*domain.Result, error) {
	res, ok := r.results[queryID]
	if !ok {
		return nil, domain.ErrNoData
	}
	return res, nil
}

func (r *stubQueryRepo) Start(queryID string) error {
	q, ok := r.queries[queryID]
	if !ok || q.State != domain.StatePendiente {
		return domain.ErrInvalidState
	}
	q.State = domain.StateProcesando
	return nil
}

func (r *stubQueryRepo) Complete(queryID string, result *domain.Result, completedAt time.Time, latencyMS int64) error {
	q, ok := r.queries[queryID]
	if !ok || q.State != domain.StateProcesando {
		return domain.ErrInvalidState
	}
	q.State = domain.StateCompletada
	q.CompletedAt = &completedAt
	q.LatencyMS = latencyMS
	r.results[queryID] = result
	return nil
}

func (r *stubQueryRepo) Fail(queryID, message string) error {
	q, ok := r.queries[queryID]
	if !ok || q.State != domain.StateProcesando {
		return domain.ErrInvalidState
	}
	q.State = domain.StateError
	q.ErrorMsg = message
	return nil
}

func (r *stubQueryRepo) List(userID string, filter domain.QueryFilter, page, perPage int) (*domain.QueryPage, error) {
	var out []*domain.Query
	for _, q := range r.queries {
		if q.UserID == userID {
			out = append(out, q)
		}
	}
	return &domain.QueryPage{Queries: out, Total: len(out), Pages: 1, Page: page, PerPage: perPage}, nil
}

// stubKeySource has no stored credentials; only the simulated provider runs.
type stubKeySource struct{}

func (stubKeySource) ActiveKey(userID, provider string) (string, error) {
	return "", domain.ErrNotFound
}

func newQueryTestServer(repo *stubQueryRepo) *http.ServeMux {
	svc := service.NewQueryService(repo, stubKeySource{}, &http.Client{}, nil, nil)
	h := NewQueryHandler(svc, discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /queries/tiempo-real", h.CreateCurrent)
	mux.HandleFunc("POST /queries/historico", h.CreateHistorical)
	mux.HandleFunc("GET /queries/mis-consultas", h.List)
	mux.HandleFunc("GET /queries/{id}", h.Get)
	mux.HandleFunc("GET /queries/{id}/descargar", h.Download)
	return mux
}

func authedRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	claims := &auth.Claims{UserID: "user-1", Username: "mariana"}
	return r.WithContext(context.WithValue(r.Context(), middleware.ClaimsContextKey{}, claims))
}

func TestCreateCurrentEndpointReturnsOK(t *testing.T) {
	t.Setenv("FLAG_SIMULATED_WEATHER", "true")
	mux := newQueryTestServer(newStubQueryRepo())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/queries/tiempo-real", `{"ciudad":"Bogotá"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Query struct {
			State string `json:"estado"`
		} `json:"consulta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if out.Query.State != string(domain.StateCompletada) {
		t.Errorf("estado = %q, want completada", out.Query.State)
	}
}

func TestCreateHistoricalEndpointCityOnly(t *testing.T) {
	t.Setenv("FLAG_SIMULATED_WEATHER", "true")
	mux := newQueryTestServer(newStubQueryRepo())

	body := `{"ciudad":"Bogotá","fecha_inicio":"2026-08-01","fecha_fin":"2026-08-07"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/queries/historico", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
}

func TestDownloadPendingQueryRejected(t *testing.T) {
	repo := newStubQueryRepo()
	repo.Create(&domain.Query{
		UserID: "user-1",
		Type:   domain.QueryTiempoReal,
		City:   "Lima",
		Format: domain.FormatJSON,
		State:  domain.StatePendiente,
	})
	mux := newQueryTestServer(repo)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/queries/q-1/descargar", ""))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("downloading an unfinished query: status = %d, want 400", rec.Code)
	}
}

func TestDownloadForeignQueryNotFound(t *testing.T) {
	repo := newStubQueryRepo()
	repo.Create(&domain.Query{
		UserID: "someone-else",
		Type:   domain.QueryTiempoReal,
		City:   "Lima",
		Format: domain.FormatJSON,
		State:  domain.StateCompletada,
	})
	mux := newQueryTestServer(repo)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/queries/q-1/descargar", ""))

	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign query: status = %d, want 404", rec.Code)
	}
}

func TestDownloadUnknownFormatRejected(t *testing.T) {
	t.Setenv("FLAG_SIMULATED_WEATHER", "true")
	repo := newStubQueryRepo()
	mux := newQueryTestServer(repo)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/queries/tiempo-real", `{"ciudad":"Bogotá"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("setup query failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodGet, "/queries/q-1/descargar?formato=xml", ""))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format: status = %d, want 400", rec.Code)
	}
}

func TestQueryEndpointsRequireClaims(t *testing.T) {
	mux := newQueryTestServer(newStubQueryRepo())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queries/mis-consultas", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without claims: status = %d, want 401", rec.Code)
	}
}
