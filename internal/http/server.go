package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lufespi/gestor-academico/internal/auth"
	"github.com/lufespi/gestor-academico/internal/config"
	"github.com/lufespi/gestor-academico/internal/crypto"
	"github.com/lufespi/gestor-academico/internal/mail"
	"github.com/lufespi/gestor-academico/internal/model"
	"github.com/lufespi/gestor-academico/internal/policy"
	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/tokens"
)

// Store is the persistence the API needs. *repository.Store satisfies it.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, userID string) (model.User, error)
	CreateAccount(ctx context.Context, account model.NewAccount) error
	ConfirmEmail(ctx context.Context, userID string, confirmedAt time.Time) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	GetProfile(ctx context.Context, userID string) (model.Profile, error)

	CreateRefreshSession(ctx context.Context, session model.RefreshSession) error
	GetRefreshSession(ctx context.Context, tokenHash string) (model.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, sessionID string, revokedAt time.Time) error
	RevokeRefreshSessionsByUser(ctx context.Context, userID string, revokedAt time.Time) error

	Query(ctx context.Context, name string, caller model.Caller, params map[string]string) (any, error)
}

type Server struct {
	cfg      config.Config
	store    Store
	policy   *policy.Enforcer
	tokens   tokens.Store
	outbox   mail.Outbox
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewServer(cfg config.Config, store Store, enforcer *policy.Enforcer, tokenStore tokens.Store, outbox mail.Outbox, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		policy:   enforcer,
		tokens:   tokenStore,
		outbox:   outbox,
		validate: validator.New(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/confirm", s.handleConfirm)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Post("/auth/revoke", s.handleRevoke)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.Post("/auth/password-reset", s.handlePasswordReset)
	r.Post("/auth/password-reset/confirm", s.handlePasswordResetConfirm)

	r.With(s.authMiddleware).Get("/profiles/me", s.handleGetProfile)
	r.With(s.authMiddleware).Post("/rpc/{name}", s.handleRPC)

	return r
}

func (s *Server) issueTokens(ctx context.Context, user model.User, r role.Role, userAgent, ip string) (string, string, error) {
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   r,
	})
	if err != nil {
		return "", "", err
	}

	refreshToken, err := crypto.NewOpaqueToken()
	if err != nil {
		return "", "", err
	}

	now := s.now()
	session := model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ip != "" {
		session.IPAddress = &ip
	}

	if err := s.store.CreateRefreshSession(ctx, session); err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ""
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
