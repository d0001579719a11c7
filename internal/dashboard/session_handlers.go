package dashboard

import (
	"context"
	"net/http"

	"github.com/lufespi/gestor-academico/internal/metrics"
	"github.com/lufespi/gestor-academico/internal/nav"
	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/session"
)

type sessionResponse struct {
	State session.State `json:"state"`
	Home  string        `json:"home,omitempty"`
}

func newSessionResponse(st session.State) sessionResponse {
	resp := sessionResponse{State: st}
	if st.Resolved() {
		resp.Home, _ = nav.HomeFor(st.Role())
	}
	return resp
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	store := s.sessions.Acquire(w, r)
	st := store.State()
	if r.URL.Query().Get("wait") == "1" {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.BackendTimeout)
		st, _ = store.WaitResolved(ctx)
		cancel()
	}
	s.syncRefreshCookie(w, store)
	writeJSON(w, http.StatusOK, newSessionResponse(st))
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	store := s.sessions.Acquire(w, r)
	identity, err := store.SignIn(r.Context(), req.Email, req.Password)
	metrics.AuthAttempts.WithLabelValues("sign_in", metrics.Result(err)).Inc()
	if err != nil {
		renderError(w, err)
		return
	}
	s.syncRefreshCookie(w, store)
	writeJSON(w, http.StatusOK, map[string]interface{}{"identity": identity})
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	chosen, _ := role.Parse(req.Role)

	store := s.sessions.Acquire(w, r)
	outcome, err := store.SignUp(r.Context(), session.SignUpRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.FullName,
		Role:        chosen,
	})
	metrics.AuthAttempts.WithLabelValues("sign_up", metrics.Result(err)).Inc()
	if err != nil {
		renderError(w, err)
		return
	}
	s.syncRefreshCookie(w, store)
	writeJSON(w, http.StatusCreated, outcome)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	store, ok := s.sessions.Lookup(r)
	if !ok {
		writeJSON(w, http.StatusOK, newSessionResponse(session.State{RoleResolved: true}))
		return
	}
	store.SignOut(r.Context())
	metrics.AuthAttempts.WithLabelValues("sign_out", "ok").Inc()
	s.syncRefreshCookie(w, store)
	writeJSON(w, http.StatusOK, newSessionResponse(store.State()))
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	store := s.sessions.Acquire(w, r)
	err := store.ResetPassword(r.Context(), req.Email)
	metrics.AuthAttempts.WithLabelValues("reset_password", metrics.Result(err)).Inc()
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type confirmRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	store := s.sessions.Acquire(w, r)
	err := store.ConfirmEmail(r.Context(), req.Token)
	metrics.AuthAttempts.WithLabelValues("confirm", metrics.Result(err)).Inc()
	if err != nil {
		renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	store := s.sessions.Acquire(w, r)
	st := store.State()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"role":  st.Role(),
		"items": nav.MenuFor(st.Role()),
	})
}
