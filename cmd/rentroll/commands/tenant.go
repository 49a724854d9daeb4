package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/schema"
)

func newTenantCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Add, update and soft-delete tenants of a property version",
		Long: `Tenant commands edit one row of the rent roll. Each command bumps the version's
revision and re-derives the vacant row, so pass the revision you last read.`,
	}

	cmd.AddCommand(newTenantAddCommand())
	cmd.AddCommand(newTenantUpdateCommand())
	cmd.AddCommand(newTenantDeleteCommand())

	return cmd
}

// entityFlags are the flags shared by every tenant and broker write command.
type entityFlags struct {
	file     string
	revision int64
}

func (f *entityFlags) register(cmd *cobra.Command, withFile bool) {
	cmd.Flags().Int64VarP(&f.revision, "revision", "r", -1, "expected current revision")
	if withFile {
		cmd.Flags().StringVarP(&f.file, "file", "f", "", "payload document (YAML or JSON)")
		_ = cmd.MarkFlagRequired("file")
	}
}

// prepare parses the key and checks the revision and the actor's role.
func (f *entityFlags) prepare(args []string) (property.Key, property.Actor, error) {
	key, err := parseKey(args)
	if err != nil {
		return property.Key{}, property.Actor{}, err
	}
	if err := checkRevision(f.revision); err != nil {
		return property.Key{}, property.Actor{}, err
	}
	actor, err := writer()
	if err != nil {
		return property.Key{}, property.Actor{}, err
	}
	return key, actor, nil
}

func newTenantAddCommand() *cobra.Command {
	var flags entityFlags

	cmd := &cobra.Command{
		Use:     "add <property-id> <version> --revision N --file tenant.yaml",
		Short:   "Add a tenant",
		Example: `  rentroll tenant add tower-1 1.0 --revision 3 --file acme.yaml`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, actor, err := flags.prepare(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				var in property.TenantInput
				if err := a.schemas.DecodeFile(flags.file, schema.KindTenant, &in); err != nil {
					return err
				}
				agg, id, err := a.engine.CreateTenant(cmd.Context(), key, flags.revision, in, actor)
				if err != nil {
					return err
				}
				if !jsonOutput {
					fmt.Printf("✓ Added tenant %s\n\n", id)
				}
				return printAggregate(os.Stdout, agg)
			})
		},
	}
	flags.register(cmd, true)

	return cmd
}

func newTenantUpdateCommand() *cobra.Command {
	var flags entityFlags

	cmd := &cobra.Command{
		Use:   "update <property-id> <version> <tenant-id> --revision N --file tenant.yaml",
		Short: "Overwrite a tenant's lease terms",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, actor, err := flags.prepare(args[:2])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				var in property.TenantInput
				if err := a.schemas.DecodeFile(flags.file, schema.KindTenant, &in); err != nil {
					return err
				}
				agg, err := a.engine.UpdateTenant(cmd.Context(), key, flags.revision, args[2], in, actor)
				if err != nil {
					return err
				}
				return printAggregate(os.Stdout, agg)
			})
		},
	}
	flags.register(cmd, true)

	return cmd
}

func newTenantDeleteCommand() *cobra.Command {
	var flags entityFlags

	cmd := &cobra.Command{
		Use:   "delete <property-id> <version> <tenant-id> --revision N",
		Short: "Soft-delete a tenant",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, actor, err := flags.prepare(args[:2])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				agg, err := a.engine.DeleteTenant(cmd.Context(), key, flags.revision, args[2], actor)
				if err != nil {
					return err
				}
				return printAggregate(os.Stdout, agg)
			})
		},
	}
	flags.register(cmd, false)

	return cmd
}
