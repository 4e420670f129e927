package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamspace-hq/teamspace/common/database"
	"github.com/teamspace-hq/teamspace/workspace/migrations"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the database schema",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(database.Up), string(database.Down)},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := database.Direction(args[0])
		if direction != database.Up && direction != database.Down {
			return fmt.Errorf("unknown direction %q, want up or down", args[0])
		}
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.DatabaseURL == "" {
			return errors.New("database_url is not configured")
		}
		if err := database.Migrate(migrations.FS, ".", cfg.DatabaseURL, direction); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", direction)
		return nil
	},
}
