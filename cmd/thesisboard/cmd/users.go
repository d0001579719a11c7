package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lufespi/gestor-academico/internal/crypto"
	"github.com/lufespi/gestor-academico/internal/db"
	"github.com/lufespi/gestor-academico/internal/model"
	"github.com/lufespi/gestor-academico/internal/repository"
	"github.com/lufespi/gestor-academico/internal/role"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account with a profile and role",
	Long: `Creates a user, its profile and its role row. Coordinators can only be
created this way or by signing up with the coordinator role.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		roleName, _ := cmd.Flags().GetString("role")
		unconfirmed, _ := cmd.Flags().GetBool("unconfirmed")

		account, err := newAccount(email, password, name, roleName, !unconfirmed, time.Now().UTC())
		if err != nil {
			return err
		}

		pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if err := repository.NewStore(pool).CreateAccount(cmd.Context(), account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), account.User.ID)
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().String("email", "", "Account email")
	usersCreateCmd.Flags().String("password", "", "Account password")
	usersCreateCmd.Flags().String("name", "", "Full name")
	usersCreateCmd.Flags().String("role", "", "coordinator, professor or student")
	usersCreateCmd.Flags().Bool("unconfirmed", false, "Leave the email unconfirmed")
	_ = usersCreateCmd.MarkFlagRequired("email")
	_ = usersCreateCmd.MarkFlagRequired("password")
	_ = usersCreateCmd.MarkFlagRequired("role")

	usersCmd.AddCommand(usersCreateCmd)
}

func newAccount(email, password, name, roleName string, confirmed bool, now time.Time) (model.NewAccount, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.NewAccount{}, fmt.Errorf("email and password are required")
	}
	r, ok := role.Parse(roleName)
	if !ok {
		return model.NewAccount{}, fmt.Errorf("unknown role %q", roleName)
	}
	if name == "" {
		name = email
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return model.NewAccount{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if confirmed {
		user.EmailConfirmedAt = &now
	}
	return model.NewAccount{
		User: user,
		Profile: model.Profile{
			UserID:   user.ID,
			Email:    email,
			FullName: name,
			Role:     r,
		},
	}, nil
}
