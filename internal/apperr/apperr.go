// Package apperr holds the error taxonomy shared by the session store, the
// backend client and the dashboard handlers.
package apperr

import (
	"errors"
	"fmt"
)

const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailTaken         = "email_taken"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeInvalidRequest     = "invalid_request"
	CodeWeakPassword       = "weak_password"
	CodeInvalidToken       = "invalid_token"
	CodeSessionExpired     = "session_expired"
	CodeNotAuthenticated   = "not_authenticated"
)

var authMessages = map[string]string{
	CodeInvalidCredentials: "Email ou senha incorretos",
	CodeEmailTaken:         "Este email já está cadastrado",
	CodeEmailNotConfirmed:  "Confirme seu email antes de entrar",
	CodeInvalidRequest:     "Dados inválidos",
	CodeWeakPassword:       "A senha deve ter pelo menos 6 caracteres",
	CodeInvalidToken:       "Link inválido ou expirado",
	CodeSessionExpired:     "Sua sessão expirou. Entre novamente",
	CodeNotAuthenticated:   "Você precisa entrar para continuar",
}

// ErrSuperseded is returned for an async result that finished after a newer
// sign-in or sign-out replaced the session it was started under.
var ErrSuperseded = errors.New("superseded by a newer session")

type AuthError struct {
	Code string
}

func (e *AuthError) Error() string {
	return "auth: " + e.Code
}

func (e *AuthError) Message() string {
	if msg, ok := authMessages[e.Code]; ok {
		return msg
	}
	return "Não foi possível autenticar"
}

type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Message() string {
	return "Não foi possível conectar ao servidor. Tente novamente"
}

type DataError struct {
	Query  string
	Code   string
	Status int
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data: %s: %s", e.Query, e.Code)
}

func (e *DataError) Message() string {
	return "Nenhum dado disponível"
}

// AuthorizationDenied never reaches a user as an error; callers turn it into
// a redirect.
type AuthorizationDenied struct {
	Path   string
	Target string
}

func (e *AuthorizationDenied) Error() string {
	return fmt.Sprintf("authorization denied for %s, redirect to %s", e.Path, e.Target)
}

func Auth(code string) error {
	return &AuthError{Code: code}
}

func Network(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// Code returns the machine-readable code for err, or "server_error".
func Code(err error) string {
	var authErr *AuthError
	var netErr *NetworkError
	var dataErr *DataError
	switch {
	case errors.As(err, &authErr):
		return authErr.Code
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &dataErr):
		return "data_error"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	default:
		return "server_error"
	}
}

// UserMessage returns the localized text a caller may display for err.
func UserMessage(err error) string {
	var authErr *AuthError
	var netErr *NetworkError
	var dataErr *DataError
	switch {
	case errors.As(err, &authErr):
		return authErr.Message()
	case errors.As(err, &netErr):
		return netErr.Message()
	case errors.As(err, &dataErr):
		return dataErr.Message()
	default:
		return "Erro inesperado"
	}
}

func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

func IsData(err error) bool {
	var dataErr *DataError
	return errors.As(err, &dataErr)
}
