package session

import (
	"context"

	"github.com/lufespi/gestor-academico/internal/role"
)

type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Profile struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      role.Role `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
}

// State is an immutable snapshot. Identity and Profile are never mutated
// after publication; a new pointer is published instead.
type State struct {
	Identity     *Identity `json:"identity"`
	Profile      *Profile  `json:"profile"`
	Loading      bool      `json:"loading"`
	RoleResolved bool      `json:"roleResolved"`
	ProfileErr   string    `json:"profileError,omitempty"`
}

// Resolved reports whether an authorization decision may be taken.
func (s State) Resolved() bool {
	return !s.Loading && s.RoleResolved
}

// Role is the profile role, or role.None when there is no profile.
func (s State) Role() role.Role {
	if s.Profile == nil {
		return role.None
	}
	return s.Profile.Role
}

func (s State) Equal(other State) bool {
	if s.Loading != other.Loading || s.RoleResolved != other.RoleResolved || s.ProfileErr != other.ProfileErr {
		return false
	}
	if (s.Identity == nil) != (other.Identity == nil) || (s.Profile == nil) != (other.Profile == nil) {
		return false
	}
	if s.Identity != nil && *s.Identity != *other.Identity {
		return false
	}
	if s.Profile != nil && *s.Profile != *other.Profile {
		return false
	}
	return true
}

type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is what the backend answers to an authentication or account
// creation. Credentials is nil when the account still needs confirmation.
type AuthResult struct {
	Identity             Identity
	Credentials          *Credentials
	ConfirmationRequired bool
}

type SignUpRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        role.Role
}

type SignUpOutcome struct {
	Identity             Identity `json:"identity"`
	ConfirmationRequired bool     `json:"confirmationRequired"`
}

// Backend is the authentication and profile collaborator. Implementations
// return *apperr.AuthError for credential problems and *apperr.NetworkError
// when the collaborator cannot be reached. FetchProfile returns (nil, nil)
// when the identity has no profile. RevokeSession ends only the refresh
// session behind the given token.
type Backend interface {
	Authenticate(ctx context.Context, email, password string) (AuthResult, error)
	CreateAccount(ctx context.Context, req SignUpRequest) (AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (AuthResult, error)
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
	RevokeSession(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmEmail(ctx context.Context, token string) error
}
