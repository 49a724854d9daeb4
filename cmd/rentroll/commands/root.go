package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rentroll/rentroll/pkg/property"
)

var (
	// Global flags
	configPath  string
	actorID     string
	roleName    string
	jsonOutput  bool
	verbose     bool
	metricsAddr string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an error to the process exit status. Domain errors get
// distinct codes so scripts can tell a stale revision from a bad payload.
func ExitCode(err error) int {
	switch property.KindOf(err) {
	case "":
		if err == nil {
			return 0
		}
		return 1
	case property.KindNotFound:
		return 3
	case property.KindConflict:
		return 4
	case property.KindValidation:
		return 5
	default:
		return 1
	}
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rentroll",
		Short: "rentroll - versioned property rent roll engine",
		Long: `rentroll manages versioned real-estate property records: a core record with
underwriting inputs plus broker and tenant collections.

Features:
  - Optimistic concurrency with per-version revisions
  - Derived vacant space and lease rule validation
  - Save-as branching into the next semantic version
  - Hash-chained audit log of every mutation
  - Rego admission policies
  - SQLite, Postgres or in-memory storage`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ./rentroll.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "cli", "identity recorded as updatedBy/deletedBy")
	rootCmd.PersistentFlags().StringVar(&roleName, "role", string(property.RoleAnalyst), "actor role (admin, analyst, viewer)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newPropertyCommand())
	rootCmd.AddCommand(newTenantCommand())
	rootCmd.AddCommand(newBrokerCommand())
	rootCmd.AddCommand(newAuditCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newBackupCommand())

	return rootCmd
}
