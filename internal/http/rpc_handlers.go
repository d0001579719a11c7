package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/lufespi/gestor-academico/internal/metrics"
	"github.com/lufespi/gestor-academico/internal/model"
	"github.com/lufespi/gestor-academico/internal/policy"
	"github.com/lufespi/gestor-academico/internal/repository"
	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/rpc"
)

type profileResponse struct {
	UserID    string  `json:"userId"`
	Email     string  `json:"email"`
	FullName  string  `json:"fullName"`
	Role      string  `json:"role"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	profile, err := s.store.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "profile_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		UserID:    profile.UserID,
		Email:     profile.Email,
		FullName:  profile.FullName,
		Role:      string(profile.Role),
		Phone:     profile.Phone,
		AvatarURL: profile.AvatarURL,
	})
}

type rpcRequest struct {
	Params map[string]string `json:"params"`
}

// handleRPC runs a role-scoped query. The role comes from the access token and
// the policy decides before any row is read.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	name := chi.URLParam(r, "name")
	if !rpc.Known(name) {
		writeError(w, http.StatusNotFound, "unknown_rpc")
		return
	}
	roleLabel := string(claims.Role)
	if claims.Role == role.None {
		roleLabel = "none"
	}

	var req rpcRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	allowed, err := s.policy.CanCall(claims.Role, name)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(name, roleLabel, "error").Inc()
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if allowed && name == rpc.UserRole {
		if target := req.Params["user_id"]; target != "" && target != claims.UserID {
			allowed, err = s.policy.Allow(claims.Role, name, policy.ActionReadAny)
			if err != nil {
				metrics.RPCCalls.WithLabelValues(name, roleLabel, "error").Inc()
				writeError(w, http.StatusInternalServerError, "server_error")
				return
			}
		}
	}
	if !allowed {
		metrics.RPCCalls.WithLabelValues(name, roleLabel, "forbidden").Inc()
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	caller := model.Caller{UserID: claims.UserID, Role: claims.Role}
	data, err := s.store.Query(r.Context(), name, caller, req.Params)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownQuery) {
			metrics.RPCCalls.WithLabelValues(name, roleLabel, "error").Inc()
			writeError(w, http.StatusNotFound, "unknown_rpc")
			return
		}
		s.logger.Error("rpc query", "rpc", name, "user_id", claims.UserID, "err", err)
		metrics.RPCCalls.WithLabelValues(name, roleLabel, "error").Inc()
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}

	metrics.RPCCalls.WithLabelValues(name, roleLabel, "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}
