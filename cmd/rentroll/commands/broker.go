package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/schema"
)

func newBrokerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "broker",
		Short: "Add, update and soft-delete brokers of a property version",
	}

	cmd.AddCommand(newBrokerAddCommand())
	cmd.AddCommand(newBrokerUpdateCommand())
	cmd.AddCommand(newBrokerDeleteCommand())

	return cmd
}

func newBrokerAddCommand() *cobra.Command {
	var flags entityFlags

	cmd := &cobra.Command{
		Use:     "add <property-id> <version> --revision N --file broker.yaml",
		Short:   "Add a broker",
		Example: `  rentroll broker add tower-1 1.0 --revision 4 --file jane.yaml`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, actor, err := flags.prepare(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				var in property.BrokerInput
				if err := a.schemas.DecodeFile(flags.file, schema.KindBroker, &in); err != nil {
					return err
				}
				agg, id, err := a.engine.CreateBroker(cmd.Context(), key, flags.revision, in, actor)
				if err != nil {
					return err
				}
				if !jsonOutput {
					fmt.Printf("✓ Added broker %s\n\n", id)
				}
				return printAggregate(os.Stdout, agg)
			})
		},
	}
	flags.register(cmd, true)

	return cmd
}

func newBrokerUpdateCommand() *cobra.Command {
	var flags entityFlags

	cmd := &cobra.Command{
		Use:   "update <property-id> <version> <broker-id> --revision N --file broker.yaml",
		Short: "Overwrite a broker's contact details",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, actor, err := flags.prepare(args[:2])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				var in property.BrokerInput
				if err := a.schemas.DecodeFile(flags.file, schema.KindBroker, &in); err != nil {
					return err
				}
				agg, err := a.engine.UpdateBroker(cmd.Context(), key, flags.revision, args[2], in, actor)
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

func newBrokerDeleteCommand() *cobra.Command {
	var flags entityFlags

	cmd := &cobra.Command{
		Use:   "delete <property-id> <version> <broker-id> --revision N",
		Short: "Soft-delete a broker",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, actor, err := flags.prepare(args[:2])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				agg, err := a.engine.DeleteBroker(cmd.Context(), key, flags.revision, args[2], actor)
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
