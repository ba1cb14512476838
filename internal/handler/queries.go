package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/middleware"
	"github.com/ParadojaDevs/ClimaGuru/internal/service"
)

// QueryHandler serves the weather query endpoints.
type QueryHandler struct {
	queries *service.QueryService
	logger  *slog.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queries *service.QueryService, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{queries: queries, logger: logger}
}

// CreateCurrent handles POST /queries/tiempo-real
func (h *QueryHandler) CreateCurrent(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no autenticado"})
		return
	}

	var req service.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cuerpo de solicitud inválido"})
		return
	}

	result, err := h.queries.CreateCurrent(r.Context(), claims.UserID, req, clientIP(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateHistorical handles POST /queries/historico
func (h *QueryHandler) CreateHistorical(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no autenticado"})
		return
	}

	var req service.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cuerpo de solicitud inválido"})
		return
	}

	result, err := h.queries.CreateHistorical(r.Context(), claims.UserID, req, clientIP(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// List handles GET /queries/mis-consultas
func (h *QueryHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no autenticado"})
		return
	}

	q := r.URL.Query()
	page := parseIntDefault(q.Get("page"), 1)
	perPage := parseIntDefault(q.Get("per_page"), 10)
	filter := domain.QueryFilter{
		Type:  domain.QueryType(q.Get("tipo")),
		State: domain.QueryState(q.Get("estado")),
	}

	result, err := h.queries.List(claims.UserID, filter, page, perPage)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Get handles GET /queries/{id}
func (h *QueryHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no autenticado"})
		return
	}

	result, err := h.queries.GetWithResult(claims.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Download handles GET /queries/{id}/descargar. The optional ?formato=
// parameter overrides the format chosen at creation.
func (h *QueryHandler) Download(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no autenticado"})
		return
	}

	format := domain.ExportFormat(r.URL.Query().Get("formato"))
	doc, err := h.queries.Download(claims.UserID, r.PathValue("id"), format)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
