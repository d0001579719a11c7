package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lufespi/gestor-academico/internal/model"
	"github.com/lufespi/gestor-academico/internal/role"
)

var ErrEmailTaken = errors.New("email already registered")

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, email, password_hash, email_confirmed_at, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.EmailConfirmedAt, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, email, password_hash, email_confirmed_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.EmailConfirmedAt, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

// CreateAccount writes the user, its profile and its role row in one
// transaction. Coordinators have no role table of their own.
func (s *Store) CreateAccount(ctx context.Context, account model.NewAccount) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	user := account.User
	if _, err := tx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, email_confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.PasswordHash, user.EmailConfirmedAt, user.CreatedAt, user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return err
	}

	profile := account.Profile
	if _, err := tx.Exec(ctx, `
		INSERT INTO profiles (user_id, email, full_name, role, phone, avatar_url)
		VALUES ($1, $2, $3, ($4::text)::user_role, $5, $6)
	`, user.ID, profile.Email, profile.FullName, string(profile.Role), profile.Phone, profile.AvatarURL); err != nil {
		return err
	}

	switch profile.Role {
	case role.Student:
		_, err = tx.Exec(ctx, `INSERT INTO students (id, user_id) VALUES ($1, $2)`, uuid.NewString(), user.ID)
	case role.Professor:
		_, err = tx.Exec(ctx, `INSERT INTO professors (id, user_id) VALUES ($1, $2)`, uuid.NewString(), user.ID)
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ConfirmEmail(ctx context.Context, userID string, confirmedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET email_confirmed_at = COALESCE(email_confirmed_at, $1), updated_at = $1
		WHERE id = $2
	`, confirmedAt, userID)
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, passwordHash, s.now().UTC(), userID)
	return err
}

func (s *Store) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	var (
		profile  model.Profile
		roleText string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT user_id::text, email, full_name, role::text, phone, avatar_url
		FROM profiles
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&profile.UserID, &profile.Email, &profile.FullName, &roleText, &profile.Phone, &profile.AvatarURL); err != nil {
		return profile, err
	}
	profile.Role = role.Role(roleText)
	return profile, nil
}

func (s *Store) CreateRefreshSession(ctx context.Context, session model.RefreshSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt, session.RevokedAt, session.UserAgent, session.IPAddress)
	return err
}

func (s *Store) GetRefreshSession(ctx context.Context, tokenHash string) (model.RefreshSession, error) {
	var session model.RefreshSession
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, user_id::text, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address
		FROM refresh_sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(&session.ID, &session.UserID, &session.TokenHash, &session.CreatedAt, &session.ExpiresAt, &session.RevokedAt, &session.UserAgent, &session.IPAddress)
	return session, err
}

func (s *Store) RevokeRefreshSession(ctx context.Context, sessionID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE refresh_sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`, revokedAt, sessionID)
	return err
}

func (s *Store) RevokeRefreshSessionsByUser(ctx context.Context, userID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE refresh_sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`, revokedAt, userID)
	return err
}
