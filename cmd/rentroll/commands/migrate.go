package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rentroll/rentroll/pkg/config"
	"github.com/rentroll/rentroll/pkg/stores"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver == config.DriverMemory {
				return fmt.Errorf("the memory driver has no schema to migrate")
			}

			sqlCfg, err := cfg.Storage.SQL()
			if err != nil {
				return err
			}
			store, err := stores.NewSQLStore(sqlCfg)
			if err != nil {
				return fmt.Errorf("failed to create store: %w", err)
			}
			defer store.Close()

			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			version, dirty, err := store.MigrationVersion()
			if err != nil {
				return err
			}
			if dirty {
				return fmt.Errorf("schema version %d is dirty, fix it by hand before retrying", version)
			}
			fmt.Printf("✓ Schema at version %d\n", version)
			return nil
		},
	}
}
