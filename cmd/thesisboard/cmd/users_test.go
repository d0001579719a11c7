package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lufespi/gestor-academico/internal/crypto"
	"github.com/lufespi/gestor-academico/internal/role"
)

func TestNewAccount(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	account, err := newAccount("  Coord@Uni.BR ", "segredo1", "Ana Coord", "coordinator", true, now)
	require.NoError(t, err)
	assert.Equal(t, "coord@uni.br", account.User.Email)
	assert.Equal(t, account.User.ID, account.Profile.UserID)
	assert.Equal(t, role.Coordinator, account.Profile.Role)
	assert.Equal(t, "Ana Coord", account.Profile.FullName)
	require.NotNil(t, account.User.EmailConfirmedAt)
	assert.True(t, account.User.EmailConfirmedAt.Equal(now))
	assert.NoError(t, crypto.CheckPassword(account.User.PasswordHash, "segredo1"))

	unconfirmed, err := newAccount("aluno@uni.br", "segredo1", "", "student", false, now)
	require.NoError(t, err)
	assert.Nil(t, unconfirmed.User.EmailConfirmedAt)
	assert.Equal(t, "aluno@uni.br", unconfirmed.Profile.FullName)
}

func TestNewAccountRejectsInput(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		email    string
		password string
		role     string
	}{
		{name: "missing email", password: "segredo1", role: "student"},
		{name: "missing password", email: "a@uni.br", role: "student"},
		{name: "unknown role", email: "a@uni.br", password: "segredo1", role: "admin"},
		{name: "empty role", email: "a@uni.br", password: "segredo1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newAccount(tc.email, tc.password, "", tc.role, true, now)
			assert.Error(t, err)
		})
	}
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"api", "dashboard", "migrate", "users"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestAddrFlagOverridesListenAddress(t *testing.T) {
	cfg.HTTPAddr, cfg.DashboardAddr = ":8080", ":3000"
	t.Cleanup(func() { cfg.HTTPAddr, cfg.DashboardAddr = "", "" })

	require.NoError(t, apiCmd.Flags().Set("addr", ":9090"))
	t.Cleanup(func() { _ = apiCmd.Flags().Set("addr", "") })
	applyFlagOverrides(apiCmd)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, ":3000", cfg.DashboardAddr)
}
