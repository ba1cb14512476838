package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"unsupported format", domain.ErrUnsupportedFormat, http.StatusBadRequest},
		{"invalid state", domain.ErrInvalidState, http.StatusBadRequest},
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"inactive user", domain.ErrInactiveUser, http.StatusForbidden},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"no data", domain.ErrNoData, http.StatusNotFound},
		{"conflict", domain.ErrConflict, http.StatusConflict},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, discardLogger(), tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, discardLogger(), io.ErrUnexpectedEOF)

	if body := rec.Body.String(); body == "" || body[0] != '{' {
		t.Fatalf("expected a JSON body, got %q", body)
	}
	if got := rec.Body.String(); got != `{"error":"error interno del servidor"}`+"\n" {
		t.Errorf("internal error leaked: %s", got)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "9.9.9.9:4321"
	if ip := clientIP(r); ip != "9.9.9.9" {
		t.Errorf("clientIP = %q, want 9.9.9.9", ip)
	}

	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	if ip := clientIP(r); ip != "1.2.3.4" {
		t.Errorf("clientIP with forwarded header = %q, want 1.2.3.4", ip)
	}
}
