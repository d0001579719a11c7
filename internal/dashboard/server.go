// Package dashboard is the browser-facing server. It keeps a session store
// per browser, runs every navigation through the gate and loads the panels of
// the resolved view from the API.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lufespi/gestor-academico/internal/apperr"
	"github.com/lufespi/gestor-academico/internal/config"
	"github.com/lufespi/gestor-academico/internal/gate"
	"github.com/lufespi/gestor-academico/internal/metrics"
	"github.com/lufespi/gestor-academico/internal/nav"
	"github.com/lufespi/gestor-academico/internal/session"
	"github.com/lufespi/gestor-academico/internal/views"
)

// Querier runs a role-scoped RPC with the caller's access token.
type Querier interface {
	Query(ctx context.Context, accessToken, name string, params map[string]string) (json.RawMessage, error)
}

type Server struct {
	cfg      config.Config
	sessions *Sessions
	querier  Querier
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(cfg config.Config, sessions *Sessions, querier Querier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		querier:  querier,
		logger:   logger,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/session", s.handleSession)
	r.Post("/session/sign-in", s.handleSignIn)
	r.Post("/session/sign-up", s.handleSignUp)
	r.Post("/session/sign-out", s.handleSignOut)
	r.Post("/session/reset-password", s.handleResetPassword)
	r.Post("/session/confirm", s.handleConfirm)
	r.Get("/session/events", s.handleEvents)

	r.Get("/navigate", s.handleNavigate)
	r.Get("/menu", s.handleMenu)
	r.Get("/pages", s.handlePage)
	r.Get("/pages/*", s.handlePage)

	return r
}

type navigation struct {
	Path     string        `json:"path"`
	Decision gate.Decision `json:"decision"`
	View     *views.View   `json:"view,omitempty"`
}

// navigate runs path through the gate and, when allowed, resolves the view
// for the current role.
func (s *Server) navigate(st session.State, path string) navigation {
	path = nav.Normalize(path)
	decision := gate.DecidePath(st, path)
	metrics.GateDecisions.WithLabelValues(string(decision.Outcome)).Inc()

	result := navigation{Path: path, Decision: decision}
	if decision.Outcome == gate.Allow {
		if view, ok := views.Resolve(path, st.Role()); ok {
			result.View = &view
		}
	}
	return result
}

// syncRefreshCookie mirrors the store's refresh token into the tb_refresh
// cookie, and clears it once the store has settled as signed out.
func (s *Server) syncRefreshCookie(w http.ResponseWriter, store *session.Store) {
	token := store.RefreshToken()
	if token != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     refreshCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(s.cfg.RefreshTokenTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   s.cfg.CookieSecure,
		})
		return
	}
	if st := store.State(); st.Resolved() && st.Identity == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     refreshCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   s.cfg.CookieSecure,
		})
	}
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

// renderError writes err with its code and the message a user may see.
func renderError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{
		"error":   apperr.Code(err),
		"message": apperr.UserMessage(err),
	})
}

func errorStatus(err error) int {
	var authErr *apperr.AuthError
	switch {
	case errors.As(err, &authErr):
		switch authErr.Code {
		case apperr.CodeInvalidCredentials, apperr.CodeSessionExpired, apperr.CodeNotAuthenticated:
			return http.StatusUnauthorized
		case apperr.CodeEmailNotConfirmed:
			return http.StatusForbidden
		case apperr.CodeEmailTaken:
			return http.StatusConflict
		default:
			return http.StatusBadRequest
		}
	case apperr.IsNetwork(err), apperr.IsData(err):
		return http.StatusBadGateway
	case errors.Is(err, apperr.ErrSuperseded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
