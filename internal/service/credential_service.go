package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/audit"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/secrets"
)

// ProviderInfo describes one supported weather provider for the catalog
// endpoint.
type ProviderInfo struct {
	Name        string `json:"nombre"`
	Description string `json:"descripcion"`
	NeedsKey    bool   `json:"requiere_api_key"`
	SignupURL   string `json:"url_registro,omitempty"`
}

// providerCatalog lists the providers a credential may be stored for.
var providerCatalog = map[string]ProviderInfo{
	"openweathermap": {
		Name:        "openweathermap",
		Description: "OpenWeatherMap: clima actual por ciudad o coordenadas",
		NeedsKey:    true,
		SignupURL:   "https://openweathermap.org/api",
	},
	"weatherapi": {
		Name:        "weatherapi",
		Description: "WeatherAPI.com: clima actual con cobertura global",
		NeedsKey:    true,
		SignupURL:   "https://www.weatherapi.com/",
	},
	"openmeteo": {
		Name:        "openmeteo",
		Description: "Open-Meteo: datos actuales e históricos sin API key",
		NeedsKey:    false,
	},
}

const defaultDailyLimit = 1000

// CredentialRequest carries the writable credential fields.
type CredentialRequest struct {
	Provider    string `json:"proveedor" validate:"required"`
	APIKey      string `json:"api_key"`
	APISecret   string `json:"api_secret"`
	Description string `json:"descripcion" validate:"max=500"`
	DailyLimit  int    `json:"limite_consultas_diarias" validate:"gte=0,lte=100000"`
}

// CredentialView is a credential as shown to its owner. The key never leaves
// the server in full unless the caller explicitly asks for it.
type CredentialView struct {
	*domain.Credential
	KeyPreview string `json:"api_key_preview"`
	APIKey     string `json:"api_key,omitempty"`
}

// CredentialService manages encrypted provider API keys.
type CredentialService struct {
	credentials domain.CredentialRepository
	cipher      *secrets.Cipher
	auditor     *audit.Recorder
	logger      *slog.Logger
}

// NewCredentialService creates a new credential service
func NewCredentialService(
	credentials domain.CredentialRepository,
	cipher *secrets.Cipher,
	auditor *audit.Recorder,
	logger *slog.Logger,
) *CredentialService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialService{
		credentials: credentials,
		cipher:      cipher,
		auditor:     auditor,
		logger:      logger,
	}
}

// Providers returns the supported provider catalog, sorted by name.
func (s *CredentialService) Providers() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(providerCatalog))
	for _, info := range providerCatalog {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Set stores a new credential. A second active credential for the same
// provider is rejected with ErrConflict; the existing one must be updated or
// deleted first.
func (s *CredentialService) Set(userID string, req CredentialRequest, ip string) (*CredentialView, error) {
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	info, ok := providerCatalog[provider]
	if !ok {
		return nil, fmt.Errorf("%w: proveedor no soportado: %s", domain.ErrValidation, req.Provider)
	}
	if info.NeedsKey && strings.TrimSpace(req.APIKey) == "" {
		return nil, fmt.Errorf("%w: api_key requerida para %s", domain.ErrValidation, provider)
	}

	encKey, err := s.cipher.Encrypt(req.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt api key: %w", err)
	}
	var encSecret string
	if req.APISecret != "" {
		encSecret, err = s.cipher.Encrypt(req.APISecret)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt api secret: %w", err)
		}
	}

	limit := req.DailyLimit
	if limit <= 0 {
		limit = defaultDailyLimit
	}

	cred := &domain.Credential{
		UserID:          userID,
		Provider:        provider,
		EncryptedKey:    encKey,
		EncryptedSecret: encSecret,
		Description:     strings.TrimSpace(req.Description),
		Active:          true,
		DailyLimit:      limit,
	}
	if err := s.credentials.Create(cred); err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.Record(userID, "api_key_creada", map[string]any{"proveedor": provider}, ip)
	}

	return &CredentialView{Credential: cred, KeyPreview: secrets.Mask(req.APIKey)}, nil
}

// Get returns one credential with a masked key preview. When includeSecret is
// set the plaintext key is decrypted and included.
func (s *CredentialService) Get(userID, id string, includeSecret bool) (*CredentialView, error) {
	cred, err := s.credentials.GetByID(id, userID)
	if err != nil {
		return nil, err
	}
	return s.view(cred, includeSecret)
}

// List returns all of a user's credentials with masked previews.
func (s *CredentialService) List(userID string) ([]*CredentialView, error) {
	creds, err := s.credentials.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	views := make([]*CredentialView, 0, len(creds))
	for _, cred := range creds {
		v, err := s.view(cred, false)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// UpdateRequest carries the fields a credential update may change. Nil
// pointers leave the stored value untouched.
type UpdateRequest struct {
	APIKey      *string `json:"api_key"`
	APISecret   *string `json:"api_secret"`
	Description *string `json:"descripcion"`
	Active      *bool   `json:"activa"`
	DailyLimit  *int    `json:"limite_consultas_diarias"`
}

// Update applies a partial update, re-encrypting only the fields provided.
func (s *CredentialService) Update(userID, id string, req UpdateRequest, ip string) (*CredentialView, error) {
	cred, err := s.credentials.GetByID(id, userID)
	if err != nil {
		return nil, err
	}

	if req.APIKey != nil {
		if strings.TrimSpace(*req.APIKey) == "" {
			return nil, fmt.Errorf("%w: api_key no puede quedar vacía", domain.ErrValidation)
		}
		enc, err := s.cipher.Encrypt(*req.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt api key: %w", err)
		}
		cred.EncryptedKey = enc
	}
	if req.APISecret != nil {
		if *req.APISecret == "" {
			cred.EncryptedSecret = ""
		} else {
			enc, err := s.cipher.Encrypt(*req.APISecret)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt api secret: %w", err)
			}
			cred.EncryptedSecret = enc
		}
	}
	if req.Description != nil {
		cred.Description = strings.TrimSpace(*req.Description)
	}
	if req.Active != nil {
		cred.Active = *req.Active
	}
	if req.DailyLimit != nil && *req.DailyLimit > 0 {
		cred.DailyLimit = *req.DailyLimit
	}

	if err := s.credentials.Update(cred); err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.Record(userID, "api_key_actualizada", map[string]any{"proveedor": cred.Provider}, ip)
	}

	return s.view(cred, false)
}

// Delete removes a credential permanently.
func (s *CredentialService) Delete(userID, id, ip string) error {
	cred, err := s.credentials.GetByID(id, userID)
	if err != nil {
		return err
	}
	if err := s.credentials.Delete(id, userID); err != nil {
		return err
	}
	if s.auditor != nil {
		s.auditor.Record(userID, "api_key_eliminada", map[string]any{"proveedor": cred.Provider}, ip)
	}
	return nil
}

// ActiveKey decrypts and returns the active API key for (user, provider).
// Used by the query orchestrator to call providers on the user's behalf.
func (s *CredentialService) ActiveKey(userID, provider string) (string, error) {
	cred, err := s.credentials.GetActiveByProvider(userID, provider)
	if err != nil {
		return "", err
	}
	key, err := s.cipher.Decrypt(cred.EncryptedKey)
	if err != nil {
		if errors.Is(err, secrets.ErrCiphertext) {
			s.logger.Error("stored credential cannot be decrypted",
				slog.String("credential_id", cred.ID),
				slog.String("provider", provider),
			)
		}
		return "", err
	}
	return key, nil
}

func (s *CredentialService) view(cred *domain.Credential, includeSecret bool) (*CredentialView, error) {
	key, err := s.cipher.Decrypt(cred.EncryptedKey)
	if err != nil {
		return nil, err
	}

	v := &CredentialView{Credential: cred, KeyPreview: secrets.Mask(key)}
	if includeSecret {
		v.APIKey = key
	}
	return v, nil
}
