package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rentroll/rentroll/pkg/config"
	"github.com/rentroll/rentroll/pkg/stores"
)

func newInitCommand() *cobra.Command {
	var (
		driver string
		dbPath string
		dsn    string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a rentroll workspace",
		Long: `Write a configuration file and create the database with its schema.

The default workspace uses the SQLite file rentroll.db. Pass --driver postgres
with --dsn to point at an existing Postgres database instead.`,
		Example: `  # SQLite workspace in the current directory
  rentroll init

  # Postgres workspace
  rentroll init --driver postgres --dsn postgres://rentroll@localhost/rentroll`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path := configPath
			if path == "" {
				path = config.DefaultFile
			}

			cfg := config.Default()
			cfg.Storage.Driver = driver
			switch driver {
			case config.DriverSQLite:
				if dbPath != "" {
					cfg.Storage.Path = dbPath
				}
				if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o700); err != nil {
					return fmt.Errorf("failed to create data directory: %w", err)
				}
			case config.DriverPostgres:
				cfg.Storage.DSN = dsn
			case config.DriverMemory:
			default:
				return fmt.Errorf("unknown driver %q", driver)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log.Info().Str("config", path).Str("driver", driver).Msg("Initializing workspace")

			if err := cfg.Write(path, force); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote configuration: %s\n", path)

			if driver == config.DriverMemory {
				fmt.Println("✓ Memory driver selected, no database to create")
				return nil
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
			version, _, err := store.MigrationVersion()
			if err != nil {
				return err
			}
			fmt.Printf("✓ Database ready at schema version %d\n", version)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", config.DriverSQLite, "storage driver (sqlite, postgres, memory)")
	cmd.Flags().StringVar(&dbPath, "path", "", "SQLite database file")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")

	return cmd
}
