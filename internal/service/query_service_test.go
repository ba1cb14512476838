package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
)

// failingTransport short-circuits every outbound request so tests never touch
// the network. Real providers fail fast; the simulated one does not use HTTP.
type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("network disabled in tests")
}

func newTestQueryService(repo *fakeQueryRepo, keys *fakeKeySource) *QueryService {
	if keys == nil {
		keys = &fakeKeySource{}
	}
	client := &http.Client{Transport: failingTransport{}}
	return NewQueryService(repo, keys, client, nil, nil)
}

func TestCreateCurrentCompletes(t *testing.T) {
	t.Setenv("FLAG_SIMULATED_WEATHER", "true")

	repo := newFakeQueryRepo()
	svc := newTestQueryService(repo, nil)

	out, err := svc.CreateCurrent(context.Background(), "user-1", QueryRequest{City: "Bogotá"}, "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateCurrent failed: %v", err)
	}

	if out.Query.State != domain.StateCompletada {
		t.Fatalf("expected completada, got %s (%s)", out.Query.State, out.Query.ErrorMsg)
	}
	if out.Query.CompletedAt == nil {
		t.Error("completada_en not set")
	}
	if out.Result == nil {
		t.Fatal("expected a result")
	}
	if len(out.Result.Sources) == 0 {
		t.Error("expected at least one source")
	}
	if out.Result.TempMin > out.Result.TempAvg || out.Result.TempAvg > out.Result.TempMax {
		t.Errorf("temperature ordering broken: min=%v avg=%v max=%v",
			out.Result.TempMin, out.Result.TempAvg, out.Result.TempMax)
	}

	// The stored query reached its terminal state; it cannot fail afterwards.
	if err := repo.Fail(out.Query.ID, "late failure"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState failing a completed query, got %v", err)
	}
}

func TestCreateCurrentNoProvidersFails(t *testing.T) {
	repo := newFakeQueryRepo()
	svc := newTestQueryService(repo, nil)

	out, err := svc.CreateCurrent(context.Background(), "user-1", QueryRequest{City: "Quito"}, "")
	if err != nil {
		t.Fatalf("CreateCurrent returned transport error instead of failed query: %v", err)
	}
	if out.Query.State != domain.StateError {
		t.Fatalf("expected error state, got %s", out.Query.State)
	}
	if out.Query.ErrorMsg == "" {
		t.Error("expected an error message on the failed query")
	}

	stored, err := repo.GetByIDAndOwner(out.Query.ID, "user-1")
	if err != nil {
		t.Fatalf("stored query missing: %v", err)
	}
	if stored.State != domain.StateError {
		t.Errorf("persisted state is %s, want error", stored.State)
	}
}

func TestCreateCurrentValidation(t *testing.T) {
	svc := newTestQueryService(newFakeQueryRepo(), nil)

	lat, lon := 91.0, 0.0
	cases := []struct {
		name string
		req  QueryRequest
	}{
		{"no location", QueryRequest{}},
		{"latitude out of range", QueryRequest{Latitude: &lat, Longitude: &lon}},
		{"unknown format", QueryRequest{City: "Lima", Format: "xml"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateCurrent(context.Background(), "user-1", tc.req, ""); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreateHistorical(t *testing.T) {
	t.Setenv("FLAG_SIMULATED_WEATHER", "true")

	repo := newFakeQueryRepo()
	svc := newTestQueryService(repo, nil)

	lat, lon := 4.71, -74.07
	out, err := svc.CreateHistorical(context.Background(), "user-1", QueryRequest{
		Latitude:  &lat,
		Longitude: &lon,
		StartDate: "2026-08-01",
		EndDate:   "2026-08-07",
	}, "")
	if err != nil {
		t.Fatalf("CreateHistorical failed: %v", err)
	}
	if out.Query.State != domain.StateCompletada {
		t.Fatalf("expected completada, got %s (%s)", out.Query.State, out.Query.ErrorMsg)
	}
	if out.Query.Type != domain.QueryHistorico {
		t.Errorf("expected historico, got %s", out.Query.Type)
	}
}

func TestCreateHistoricalCityOnly(t *testing.T) {
	t.Setenv("FLAG_SIMULATED_WEATHER", "true")

	repo := newFakeQueryRepo()
	svc := newTestQueryService(repo, nil)

	out, err := svc.CreateHistorical(context.Background(), "user-1", QueryRequest{
		City:      "Bogotá",
		StartDate: "2026-08-01",
		EndDate:   "2026-08-07",
	}, "")
	if err != nil {
		t.Fatalf("city-only historical query rejected: %v", err)
	}
	if out.Query.State != domain.StateCompletada {
		t.Fatalf("expected completada, got %s (%s)", out.Query.State, out.Query.ErrorMsg)
	}
	if out.Result == nil {
		t.Fatal("expected a result")
	}
}

func TestCreateHistoricalCityOnlyNoProviders(t *testing.T) {
	// Without coordinates and without the simulated provider no historical
	// source can serve the query. That is a fetch failure, not bad input.
	t.Setenv("FLAG_SIMULATED_WEATHER", "false")

	repo := newFakeQueryRepo()
	svc := newTestQueryService(repo, nil)

	out, err := svc.CreateHistorical(context.Background(), "user-1", QueryRequest{
		City:      "Quito",
		StartDate: "2026-08-01",
		EndDate:   "2026-08-07",
	}, "")
	if err != nil {
		t.Fatalf("expected a failed query, got error: %v", err)
	}
	if out.Query.State != domain.StateError {
		t.Fatalf("expected error state, got %s", out.Query.State)
	}
	if out.Query.ErrorMsg == "" {
		t.Error("expected an error message on the failed query")
	}
}

func TestCreateHistoricalDateValidation(t *testing.T) {
	svc := newTestQueryService(newFakeQueryRepo(), nil)
	lat, lon := 4.71, -74.07

	cases := []struct {
		name       string
		start, end string
	}{
		{"missing dates", "", ""},
		{"malformed start", "01-08-2026", "2026-08-07"},
		{"start after end", "2026-08-07", "2026-08-01"},
		{"end in the future", "2026-08-01", "2030-01-01"},
		{"range too wide", "2024-01-01", "2026-06-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateHistorical(context.Background(), "user-1", QueryRequest{
				Latitude:  &lat,
				Longitude: &lon,
				StartDate: tc.start,
				EndDate:   tc.end,
			}, "")
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestListCapsPageSize(t *testing.T) {
	repo := newFakeQueryRepo()
	svc := newTestQueryService(repo, nil)

	if _, err := svc.List("user-1", domain.QueryFilter{}, 1, 500); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if repo.lastPerPage != 100 {
		t.Errorf("per_page not capped: got %d, want 100", repo.lastPerPage)
	}

	if _, err := svc.List("user-1", domain.QueryFilter{}, 0, 0); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if repo.lastPerPage != 10 {
		t.Errorf("per_page default: got %d, want 10", repo.lastPerPage)
	}
}

func TestDownloadLifecycleGuard(t *testing.T) {
	t.Setenv("FLAG_SIMULATED_WEATHER", "true")

	repo := newFakeQueryRepo()
	svc := newTestQueryService(repo, nil)

	out, err := svc.CreateCurrent(context.Background(), "user-1", QueryRequest{City: "Medellín", Format: "csv"}, "")
	if err != nil {
		t.Fatalf("CreateCurrent failed: %v", err)
	}

	doc, err := svc.Download("user-1", out.Query.ID, "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !strings.HasPrefix(doc.ContentType, "text/csv") {
		t.Errorf("expected csv content type, got %q", doc.ContentType)
	}

	// Another user cannot download it.
	if _, err := svc.Download("user-2", out.Query.ID, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign download, got %v", err)
	}

	// A query still mid-flight cannot be exported.
	pending := &domain.Query{UserID: "user-1", Type: domain.QueryTiempoReal, Format: domain.FormatJSON, State: domain.StatePendiente}
	if err := repo.Create(pending); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Download("user-1", pending.ID, ""); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for pending query, got %v", err)
	}

	// Unknown formats are rejected before any rendering.
	if _, err := svc.Download("user-1", out.Query.ID, "xml"); !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestGetWithResult(t *testing.T) {
	t.Setenv("FLAG_SIMULATED_WEATHER", "true")

	repo := newFakeQueryRepo()
	svc := newTestQueryService(repo, nil)

	out, err := svc.CreateCurrent(context.Background(), "user-1", QueryRequest{City: "Cali"}, "")
	if err != nil {
		t.Fatalf("CreateCurrent failed: %v", err)
	}

	got, err := svc.GetWithResult("user-1", out.Query.ID)
	if err != nil {
		t.Fatalf("GetWithResult failed: %v", err)
	}
	if got.Result == nil {
		t.Fatal("expected result attached to completed query")
	}
	if got.Result.QueryID != out.Query.ID {
		t.Errorf("result belongs to %s, want %s", got.Result.QueryID, out.Query.ID)
	}

	if _, err := svc.GetWithResult("user-2", out.Query.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign read, got %v", err)
	}
}
