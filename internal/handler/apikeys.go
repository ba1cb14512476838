package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ParadojaDevs/ClimaGuru/internal/security/middleware"
	"github.com/ParadojaDevs/ClimaGuru/internal/service"
)

// APIKeyHandler serves the provider credential endpoints.
type APIKeyHandler struct {
	credentials *service.CredentialService
	logger      *slog.Logger
}

// NewAPIKeyHandler creates a new api-key handler
func NewAPIKeyHandler(credentials *service.CredentialService, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{credentials: credentials, logger: logger}
}

// Create handles POST /api-keys/
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no autenticado"})
		return
	}

	var req service.CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cuerpo de solicitud inválido"})
		return
	}

	view, err := h.credentials.Set(claims.UserID, req, clientIP(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// List handles GET /api-keys/
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no autenticado"})
		return
	}

	views, err := h.credentials.List(claims.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": views, "total": len(views)})
}

// Get handles GET /api-keys/{id}. The plaintext key is only included when
// the caller explicitly asks with ?include_secret=true.
func (h *APIKeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no autenticado"})
		return
	}

	includeSecret := r.URL.Query().Get("include_secret") == "true"
	view, err := h.credentials.Get(claims.UserID, r.PathValue("id"), includeSecret)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Update handles PUT /api-keys/{id}
func (h *APIKeyHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no autenticado"})
		return
	}

	var req service.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cuerpo de solicitud inválido"})
		return
	}

	view, err := h.credentials.Update(claims.UserID, r.PathValue("id"), req, clientIP(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Delete handles DELETE /api-keys/{id}
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no autenticado"})
		return
	}

	if err := h.credentials.Delete(claims.UserID, r.PathValue("id"), clientIP(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mensaje": "api key eliminada"})
}

// Providers handles GET /api-keys/proveedores
func (h *APIKeyHandler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"proveedores": h.credentials.Providers()})
}
