package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rentroll/rentroll/pkg/engine"
	"github.com/rentroll/rentroll/pkg/policy"
	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/rules"
	"github.com/rentroll/rentroll/pkg/schema"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage admission policies",
		Long: `Admission policies are Rego modules evaluated against the composed state of
every mutation before it is stored. Blocking violations reject the mutation;
warnings and info violations are logged.`,
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyCheckCommand())
	cmd.AddCommand(newPolicyWatchCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and loaded policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				policies := a.policies.ListPolicies()
				if jsonOutput {
					return printJSON(os.Stdout, policies)
				}

				tw := newTable(os.Stdout)
				fmt.Fprintln(tw, "NAME\tSEVERITY\tENABLED\tSOURCE\tDESCRIPTION")
				for _, p := range policies {
					source := "file"
					if p.Builtin {
						source = "builtin"
					}
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", p.Name, p.Severity, p.Enabled, source, p.Description)
				}
				return tw.Flush()
			})
		},
	}
}

func newPolicyCheckCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "check --file property.yaml",
		Short: "Evaluate policies against a property document without storing it",
		Example: `  rentroll policy check --file tower.yaml
  rentroll policy check --file tower.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				var req engine.CreateRequest
				if err := a.schemas.DecodeFile(file, schema.KindProperty, &req); err != nil {
					return err
				}

				version := req.Version
				if version == "" {
					version = engine.FirstVersion
				}
				res, err := a.policies.Evaluate(cmd.Context(), &policy.Input{
					Action:     property.ActionCreateVersion,
					PropertyID: req.PropertyID,
					Version:    version,
					Actor:      currentActor(),
					Property: property.Snapshot{
						PropertyDetails:    req.PropertyDetails,
						UnderwritingInputs: req.UnderwritingInputs,
						Brokers:            req.Brokers,
						Tenants:            rules.DeriveVacant(req.Tenants, req.PropertyDetails.BuildingSizeSf, time.Now().UTC()),
					},
				})
				if err != nil {
					return err
				}
				if err := printPolicyResult(os.Stdout, res); err != nil {
					return err
				}
				return res.Err()
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "property document (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newPolicyWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload policies whenever the configured policy directories change",
		Long: `Watch the configured policy directories and recompile the policy set on every
change, logging the result. Useful while authoring policies. Stops on Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				if a.loader == nil {
					if err := a.watchPolicies(ctx); err != nil {
						return err
					}
				}
				log.Info().Strs("dirs", a.cfg.Policy.Dirs).Msg("Watching policy directories")
				<-ctx.Done()
				return nil
			})
		},
	}
}
