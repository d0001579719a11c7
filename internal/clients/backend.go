package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lufespi/gestor-academico/internal/apperr"
	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/session"
)

// Backend talks to the API over HTTP. It implements session.Backend and runs
// role-scoped queries on behalf of a signed-in user.
type Backend struct {
	baseURL string
	client  *http.Client
}

func NewBackend(baseURL string, timeout time.Duration) *Backend {
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

var _ session.Backend = (*Backend)(nil)

type authPayload struct {
	AccessToken          string `json:"accessToken"`
	RefreshToken         string `json:"refreshToken"`
	ConfirmationRequired bool   `json:"confirmationRequired"`
	User                 struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (p authPayload) result() session.AuthResult {
	result := session.AuthResult{
		Identity:             session.Identity{ID: p.User.ID, Email: p.User.Email},
		ConfirmationRequired: p.ConfirmationRequired,
	}
	if p.AccessToken != "" {
		result.Credentials = &session.Credentials{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
	}
	return result
}

func (b *Backend) Authenticate(ctx context.Context, email, password string) (session.AuthResult, error) {
	var payload authPayload
	body := map[string]string{"email": email, "password": password}
	if err := b.do(ctx, "login", http.MethodPost, "/auth/login", "", body, &payload); err != nil {
		return session.AuthResult{}, err
	}
	return payload.result(), nil
}

func (b *Backend) CreateAccount(ctx context.Context, req session.SignUpRequest) (session.AuthResult, error) {
	var payload authPayload
	body := map[string]string{
		"email":    req.Email,
		"password": req.Password,
		"fullName": req.DisplayName,
		"role":     string(req.Role),
	}
	if err := b.do(ctx, "signup", http.MethodPost, "/auth/signup", "", body, &payload); err != nil {
		return session.AuthResult{}, err
	}
	return payload.result(), nil
}

func (b *Backend) Refresh(ctx context.Context, refreshToken string) (session.AuthResult, error) {
	var payload authPayload
	body := map[string]string{"refreshToken": refreshToken}
	if err := b.do(ctx, "refresh", http.MethodPost, "/auth/refresh", "", body, &payload); err != nil {
		return session.AuthResult{}, err
	}
	return payload.result(), nil
}

type profilePayload struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatarUrl"`
}

// FetchProfile returns (nil, nil) when the user has no profile.
func (b *Backend) FetchProfile(ctx context.Context, accessToken string) (*session.Profile, error) {
	var payload profilePayload
	err := b.do(ctx, "profile", http.MethodGet, "/profiles/me", accessToken, nil, &payload)
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	profileRole, ok := role.Parse(payload.Role)
	if !ok {
		// Kept as-is so the gate sees an unknown role and fails closed.
		profileRole = role.Role(payload.Role)
	}
	return &session.Profile{
		UserID:    payload.UserID,
		Email:     payload.Email,
		FullName:  payload.FullName,
		Role:      profileRole,
		Phone:     payload.Phone,
		AvatarURL: payload.AvatarURL,
	}, nil
}

// RevokeSession revokes the single refresh session behind refreshToken.
func (b *Backend) RevokeSession(ctx context.Context, refreshToken string) error {
	return b.do(ctx, "revoke", http.MethodPost, "/auth/revoke", "", map[string]string{"refreshToken": refreshToken}, nil)
}

func (b *Backend) RequestPasswordReset(ctx context.Context, email string) error {
	return b.do(ctx, "password_reset", http.MethodPost, "/auth/password-reset", "", map[string]string{"email": email}, nil)
}

func (b *Backend) ConfirmEmail(ctx context.Context, token string) error {
	return b.do(ctx, "confirm", http.MethodPost, "/auth/confirm", "", map[string]string{"token": token}, nil)
}

// Query runs a named role-scoped RPC and returns its raw data. A rejected or
// failed query comes back as *apperr.DataError; an expired token as an
// *apperr.AuthError with CodeSessionExpired.
func (b *Backend) Query(ctx context.Context, accessToken, name string, params map[string]string) (json.RawMessage, error) {
	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	var body interface{}
	if len(params) > 0 {
		body = map[string]interface{}{"params": params}
	}
	err := b.do(ctx, "rpc "+name, http.MethodPost, "/rpc/"+name, accessToken, body, &payload)
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.status != http.StatusUnauthorized {
		return nil, &apperr.DataError{Query: name, Code: statusErr.code, Status: statusErr.status}
	}
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// Probe checks the API's HTTP health endpoint.
func (b *Backend) Probe(ctx context.Context) error {
	return b.do(ctx, "health", http.MethodGet, "/health", "", nil, nil)
}

// statusError is a non-2xx answer that carried an error code. It is wrapped in
// the apperr type callers see.
type statusError struct {
	status int
	code   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.code)
}

func (b *Backend) do(ctx context.Context, op, method, path, accessToken string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return apperr.Network(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperr.Network(op, &statusError{status: resp.StatusCode, code: readErrorCode(resp.Body)})
	}
	if resp.StatusCode >= 400 {
		statusErr := &statusError{status: resp.StatusCode, code: readErrorCode(resp.Body)}
		return &wrappedStatus{statusErr: statusErr, authErr: authErrorFor(op, statusErr)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Network(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// wrappedStatus lets callers match both the raw status and the mapped
// *apperr.AuthError with errors.As.
type wrappedStatus struct {
	statusErr *statusError
	authErr   error
}

func (w *wrappedStatus) Error() string {
	return w.authErr.Error()
}

func (w *wrappedStatus) Unwrap() []error {
	return []error{w.authErr, w.statusErr}
}

var sessionCodes = map[string]bool{
	"missing_token":         true,
	"invalid_token":         true,
	"invalid_refresh_token": true,
	"refresh_token_expired": true,
	"user_not_found":        true,
}

func authErrorFor(op string, statusErr *statusError) error {
	switch statusErr.code {
	case "invalid_credentials", "missing_credentials":
		return apperr.Auth(apperr.CodeInvalidCredentials)
	case apperr.CodeEmailNotConfirmed, apperr.CodeEmailTaken, apperr.CodeWeakPassword:
		return apperr.Auth(statusErr.code)
	}
	if statusErr.status == http.StatusUnauthorized || (op == "refresh" && sessionCodes[statusErr.code]) {
		return apperr.Auth(apperr.CodeSessionExpired)
	}
	if statusErr.code == "invalid_token" {
		return apperr.Auth(apperr.CodeInvalidToken)
	}
	return apperr.Auth(apperr.CodeInvalidRequest)
}

func readErrorCode(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&body); err != nil || body.Error == "" {
		return "unknown"
	}
	return body.Error
}
