package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lufespi/gestor-academico/internal/crypto"
	"github.com/lufespi/gestor-academico/internal/mail"
	"github.com/lufespi/gestor-academico/internal/model"
	"github.com/lufespi/gestor-academico/internal/repository"
	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/tokens"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         userSummary `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if s.cfg.RequireEmailConfirmation && !user.Confirmed() {
		writeError(w, http.StatusForbidden, "email_not_confirmed")
		return
	}

	userRole, err := s.roleOf(r, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, userRole, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userSummary{ID: user.ID, Email: user.Email},
	})
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"fullName" validate:"required,max=200"`
	Role     string `json:"role" validate:"required,oneof=coordinator professor student"`
}

type signupResponse struct {
	User                 userSummary `json:"user"`
	ConfirmationRequired bool        `json:"confirmationRequired"`
	AccessToken          string      `json:"accessToken,omitempty"`
	RefreshToken         string      `json:"refreshToken,omitempty"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Role = strings.TrimSpace(strings.ToLower(req.Role))
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(req.Password) < crypto.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "weak_password")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	now := s.now()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	confirmationRequired := s.cfg.RequireEmailConfirmation
	if !confirmationRequired {
		user.EmailConfirmedAt = &now
	}
	account := model.NewAccount{
		User: user,
		Profile: model.Profile{
			UserID:   user.ID,
			Email:    user.Email,
			FullName: req.FullName,
			Role:     role.Role(req.Role),
		},
	}
	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email_taken")
			return
		}
		s.logger.Error("create account", "email", user.Email, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := signupResponse{
		User:                 userSummary{ID: user.ID, Email: user.Email},
		ConfirmationRequired: confirmationRequired,
	}
	if confirmationRequired {
		if err := s.sendToken(r, tokens.KindConfirm, user, "Confirme seu email", "Use o código a seguir para confirmar sua conta: %s"); err != nil {
			s.logger.Error("send confirmation", "user_id", user.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	resp.AccessToken, resp.RefreshToken, err = s.issueTokens(r.Context(), user, account.Profile.Role, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	userID, err := s.tokens.Take(r.Context(), tokens.KindConfirm, crypto.HashToken(strings.TrimSpace(req.Token)))
	if err != nil {
		if errors.Is(err, tokens.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid_token")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.ConfirmEmail(r.Context(), userID, s.now()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	tokenHash := crypto.HashToken(req.RefreshToken)
	session, err := s.store.GetRefreshSession(r.Context(), tokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if session.RevokedAt != nil || session.ExpiresAt.Before(s.now()) {
		writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "user_not_found")
		return
	}

	userRole, err := s.roleOf(r, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if err := s.store.RevokeRefreshSession(r.Context(), session.ID, s.now()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, userRole, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userSummary{ID: user.ID, Email: user.Email},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	_ = s.store.RevokeRefreshSessionsByUser(r.Context(), claims.UserID, s.now())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRevoke revokes the one refresh session the token names. The user's
// other sessions stay valid. Unknown or already revoked tokens answer 204 too.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	session, err := s.store.GetRefreshSession(r.Context(), crypto.HashToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if session.RevokedAt == nil {
		if err := s.store.RevokeRefreshSession(r.Context(), session.ID, s.now()); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// handlePasswordReset answers 202 whether or not the address is registered.
func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if s.validate.Var(req.Email, "required,email") != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	default:
		if err := s.sendToken(r, tokens.KindReset, user, "Redefinição de senha", "Use o código a seguir para redefinir sua senha: %s"); err != nil {
			s.logger.Error("send password reset", "user_id", user.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type passwordResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirmRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(req.Password) < crypto.MinPasswordLength {
		writeError(w, http.StatusBadRequest, "weak_password")
		return
	}

	userID, err := s.tokens.Take(r.Context(), tokens.KindReset, crypto.HashToken(strings.TrimSpace(req.Token)))
	if err != nil {
		if errors.Is(err, tokens.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid_token")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := s.store.UpdatePassword(r.Context(), userID, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	_ = s.store.RevokeRefreshSessionsByUser(r.Context(), userID, s.now())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// roleOf reads the role from the profile. A user without a profile gets an
// empty role, which no policy rule grants anything to.
func (s *Server) roleOf(r *http.Request, userID string) (role.Role, error) {
	profile, err := s.store.GetProfile(r.Context(), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return role.None, nil
	}
	if err != nil {
		return role.None, err
	}
	if !profile.Role.Valid() {
		return role.None, nil
	}
	return profile.Role, nil
}

func (s *Server) sendToken(r *http.Request, kind tokens.Kind, user model.User, subject, bodyFormat string) error {
	token, err := crypto.NewOpaqueToken()
	if err != nil {
		return err
	}
	ttl := s.cfg.ConfirmTokenTTL
	if kind == tokens.KindReset {
		ttl = s.cfg.ResetTokenTTL
	}
	if err := s.tokens.Put(r.Context(), kind, crypto.HashToken(token), user.ID, ttl); err != nil {
		return err
	}
	return s.outbox.Send(r.Context(), mail.Message{
		To:      user.Email,
		Subject: subject,
		Body:    fmt.Sprintf(bodyFormat, token),
	})
}
