package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
	"github.com/ParadojaDevs/ClimaGuru/internal/infrastructure/redis"
	"github.com/ParadojaDevs/ClimaGuru/internal/observability/metrics"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/audit"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/auth"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// RegisterRequest carries the fields accepted at sign-up.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"nombre_completo"`
}

// LoginRequest accepts either the username or the email as identifier.
type LoginRequest struct {
	Identifier string `json:"username_or_email"`
	Password   string `json:"password"`
}

// AuthResult is returned by Register, Login and Refresh.
type AuthResult struct {
	User   *domain.User    `json:"usuario"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// AuthService implements registration, login and the token lifecycle.
// Sessions are best-effort bookkeeping: a failure to persist one never fails
// the login that opened it, because the JWT itself is the credential.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	tokens   *auth.TokenManager
	denylist *redis.Client
	auditor  *audit.Recorder
	logger   *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	tokens *auth.TokenManager,
	denylist *redis.Client,
	auditor *audit.Recorder,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		denylist: denylist,
		auditor:  auditor,
		logger:   logger,
	}
}

// Register creates a user account and logs it straight in.
func (s *AuthService) Register(req RegisterRequest, ip, userAgent string) (*AuthResult, error) {
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(strings.ToLower(req.Email))

	if len(username) < 3 {
		return nil, fmt.Errorf("%w: el nombre de usuario debe tener al menos 3 caracteres", domain.ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: formato de email inválido", domain.ErrValidation)
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(username); err == nil {
		return nil, fmt.Errorf("%w: el nombre de usuario ya está registrado", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByEmail(email); err == nil {
		return nil, fmt.Errorf("%w: el email ya está registrado", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         domain.RoleUser,
		Active:       true,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	pair, err := s.tokens.GeneratePair(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	s.openSession(user.ID, pair.AccessJTI, ip, userAgent)

	if s.auditor != nil {
		s.auditor.Record(user.ID, "registro", map[string]any{"username": user.Username}, ip)
	}
	s.logger.Info("user registered", slog.String("user_id", user.ID), slog.String("username", user.Username))

	return &AuthResult{User: user, Tokens: pair}, nil
}

// Login authenticates by username or email.
func (s *AuthService) Login(req LoginRequest, ip, userAgent string) (*AuthResult, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: credenciales requeridas", domain.ErrValidation)
	}

	user, err := s.users.GetByUsernameOrEmail(identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.ObserveLogin("failure")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		metrics.ObserveLogin("failure")
		if s.auditor != nil {
			s.auditor.Record(user.ID, "login_fallido", nil, ip)
		}
		return nil, domain.ErrInvalidCredentials
	}

	if !user.Active {
		metrics.ObserveLogin("inactive")
		return nil, domain.ErrInactiveUser
	}

	now := time.Now().UTC()
	if err := s.users.RecordLogin(user.ID, now); err != nil {
		s.logger.Error("failed to record login time", slog.String("error", err.Error()))
	}
	user.LastLoginAt = &now

	pair, err := s.tokens.GeneratePair(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	s.openSession(user.ID, pair.AccessJTI, ip, userAgent)

	metrics.ObserveLogin("success")
	if s.auditor != nil {
		s.auditor.Record(user.ID, "login", nil, ip)
	}

	return &AuthResult{User: user, Tokens: pair}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *AuthService) Refresh(refreshToken, ip, userAgent string) (*AuthResult, error) {
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByID(claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, domain.ErrInactiveUser
	}

	access, jti, err := s.tokens.GenerateAccess(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	s.openSession(user.ID, jti, ip, userAgent)

	return &AuthResult{
		User:   user,
		Tokens: &auth.TokenPair{AccessToken: access, RefreshToken: refreshToken, AccessJTI: jti},
	}, nil
}

// Logout revokes the session for the presented access token and denylists its
// jti for the remaining token lifetime.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims, ip string) error {
	if err := s.sessions.Revoke(claims.ID); err != nil {
		s.logger.Error("failed to revoke session", slog.String("error", err.Error()))
	}

	if s.denylist != nil && claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := s.denylist.RevokeToken(ctx, claims.ID, ttl); err != nil {
			return fmt.Errorf("failed to denylist token: %w", err)
		}
	}

	if s.auditor != nil {
		s.auditor.Record(claims.UserID, "logout", nil, ip)
	}
	return nil
}

// Profile returns the authenticated user's account.
func (s *AuthService) Profile(userID string) (*domain.User, error) {
	return s.users.GetByID(userID)
}

// openSession persists session bookkeeping for an issued access token.
// Failures are logged and swallowed.
func (s *AuthService) openSession(userID, jti, ip, userAgent string) {
	if s.sessions == nil {
		return
	}
	session := &domain.Session{
		UserID:    userID,
		Token:     jti,
		IPAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: time.Now().UTC().Add(s.tokens.AccessTTL()),
		Active:    true,
	}
	if err := s.sessions.Create(session); err != nil {
		s.logger.Error("failed to persist session",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// validatePassword enforces the account password policy: at least eight
// characters with an upper case letter, a lower case letter and a digit.
func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: la contraseña debe tener al menos 8 caracteres", domain.ErrValidation)
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("%w: la contraseña debe incluir mayúsculas, minúsculas y números", domain.ErrValidation)
	}
	return nil
}
