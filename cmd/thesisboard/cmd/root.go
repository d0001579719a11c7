package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lufespi/gestor-academico/internal/config"
	"github.com/lufespi/gestor-academico/internal/logging"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "thesisboard",
	Short: "Thesis management dashboard",
	Long: `thesisboard runs the thesis management API, the role-aware dashboard
server in front of it, and the operator commands that manage its database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.LoadEnvFile(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		cfg = config.Load()
		applyFlagOverrides(cmd)

		logger = logging.New(cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file loaded before the environment")
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")

	rootCmd.AddCommand(apiCmd, dashboardCmd, migrateCmd, usersCmd)
}

func applyFlagOverrides(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetString("db-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, err := cmd.Flags().GetString("addr"); err == nil && v != "" {
		switch cmd.Name() {
		case "api":
			cfg.HTTPAddr = v
		case "dashboard":
			cfg.DashboardAddr = v
		}
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
