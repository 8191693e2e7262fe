// Package migrate implements the CLI command applying the database
// schema.
package migrate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firmup/internal/infrastructure/config"
	"firmup/internal/infrastructure/database"
	"firmup/internal/shared/logger"
)

var env string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  `Bring the database schema up to date with the current models.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(database.Get()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.NewLogger().Infow("database migrations applied", "environment", env)
	return nil
}
