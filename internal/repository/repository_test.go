package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lufespi/gestor-academico/internal/model"
	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/rpc"
)

// openTestDB expects TEST_DATABASE_URL to point at a migrated database.
func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
		return nil
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return pool
}

func createAccount(t *testing.T, store *Store, r role.Role) model.User {
	t.Helper()
	now := time.Now().UTC()
	user := model.User{
		ID:               uuid.NewString(),
		Email:            uuid.NewString() + "@uni.br",
		PasswordHash:     "hash",
		EmailConfirmedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := store.CreateAccount(context.Background(), model.NewAccount{
		User:    user,
		Profile: model.Profile{Email: user.Email, FullName: "Teste " + string(r), Role: r},
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return user
}

func TestAccountAndProfile(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	user := createAccount(t, store, role.Professor)

	byEmail, err := store.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != user.ID || !byEmail.Confirmed() {
		t.Fatalf("unexpected user %+v", byEmail)
	}

	profile, err := store.GetProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Role != role.Professor {
		t.Fatalf("expected professor, got %s", profile.Role)
	}

	dup := user
	dup.ID = uuid.NewString()
	err = store.CreateAccount(ctx, model.NewAccount{User: dup, Profile: model.Profile{Email: dup.Email, FullName: "Outro", Role: role.Student}})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if _, err := store.GetProfile(ctx, uuid.NewString()); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for missing profile, got %v", err)
	}
}

func TestRefreshSessions(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	user := createAccount(t, store, role.Student)
	now := time.Now().UTC()
	session := model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := store.CreateRefreshSession(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := store.RevokeRefreshSessionsByUser(ctx, user.ID, now); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, err := store.GetRefreshSession(ctx, session.TokenHash)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.RevokedAt == nil {
		t.Fatalf("expected revoked session")
	}
}

func TestQueryScoping(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	student := createAccount(t, store, role.Student)
	other := createAccount(t, store, role.Student)
	if _, err := pool.Exec(ctx, `
		INSERT INTO projects (id, student_id, title)
		SELECT $1, id, 'Projeto A' FROM students WHERE user_id = $2
	`, uuid.NewString(), other.ID); err != nil {
		t.Fatalf("seed project: %v", err)
	}

	details, err := store.Query(ctx, rpc.MyProjectDetails, model.Caller{UserID: student.ID, Role: role.Student}, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if d, _ := details.(*model.ProjectDetails); d != nil {
		t.Fatalf("student must not see another student's project, got %+v", d)
	}

	details, err = store.Query(ctx, rpc.MyProjectDetails, model.Caller{UserID: other.ID, Role: role.Student}, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if d, _ := details.(*model.ProjectDetails); d == nil || d.Title != "Projeto A" {
		t.Fatalf("expected own project, got %+v", details)
	}

	if _, err := store.Query(ctx, "drop_everything", model.Caller{UserID: student.ID, Role: role.Student}, nil); !errors.Is(err, ErrUnknownQuery) {
		t.Fatalf("expected ErrUnknownQuery, got %v", err)
	}
}
