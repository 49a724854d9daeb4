package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rentroll/rentroll/pkg/engine"
	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/schema"
)

func newPropertyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "property",
		Aliases: []string{"prop"},
		Short:   "Create, inspect and save property versions",
	}

	cmd.AddCommand(newPropertyCreateCommand())
	cmd.AddCommand(newPropertyShowCommand())
	cmd.AddCommand(newPropertyVersionsCommand())
	cmd.AddCommand(newPropertyListCommand())
	cmd.AddCommand(newPropertySaveCommand())
	cmd.AddCommand(newPropertySaveAsCommand())

	return cmd
}

func newPropertyCreateCommand() *cobra.Command {
	var (
		file       string
		propertyID string
		version    string
	)

	cmd := &cobra.Command{
		Use:   "create --file property.yaml",
		Short: "Create the first version of a property",
		Long: `Create a property from a YAML or JSON document holding propertyDetails,
underwritingInputs and optional brokers and tenants. The vacant tenant row is
derived from the building size and never read from the document.`,
		Example: `  rentroll property create --file tower.yaml
  rentroll property create --file tower.yaml --id tower-1 --version 2.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := writer()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				var req engine.CreateRequest
				if err := a.schemas.DecodeFile(file, schema.KindProperty, &req); err != nil {
					return err
				}
				if propertyID != "" {
					req.PropertyID = propertyID
				}
				if version != "" {
					req.Version = version
				}

				agg, err := a.engine.CreateProperty(cmd.Context(), req, actor)
				if err != nil {
					return err
				}
				log.Info().Str("property_id", agg.PropertyID).Str("version", agg.Version).Msg("Property created")
				return printAggregate(os.Stdout, agg)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "property document (YAML or JSON)")
	cmd.Flags().StringVar(&propertyID, "id", "", "property id (generated when omitted)")
	cmd.Flags().StringVar(&version, "version", "", "initial version (default "+engine.FirstVersion+")")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newPropertyShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <property-id> <version>",
		Short: "Show one property version with its brokers and tenants",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				agg, err := a.engine.Get(cmd.Context(), key)
				if err != nil {
					return err
				}
				return printAggregate(os.Stdout, agg)
			})
		},
	}
}

func newPropertyVersionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <property-id>",
		Short: "List the versions of a property, most recently updated first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				versions, err := a.engine.ListVersions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printVersions(os.Stdout, versions)
			})
		},
	}
}

func newPropertyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the latest version of every property",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				versions, err := a.engine.ListProperties(cmd.Context())
				if err != nil {
					return err
				}
				return printVersions(os.Stdout, versions)
			})
		},
	}
}

func newPropertySaveCommand() *cobra.Command {
	var (
		file     string
		revision int64
	)

	cmd := &cobra.Command{
		Use:   "save <property-id> <version> --revision N --file property.yaml",
		Short: "Replace a version's details and collections",
		Long: `Save the whole aggregate: the document's brokers and tenants replace the
stored collections. The save is rejected unless --revision matches the stored
revision.`,
		Example: `  rentroll property save tower-1 1.0 --revision 3 --file tower.yaml`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args)
			if err != nil {
				return err
			}
			if err := checkRevision(revision); err != nil {
				return err
			}
			actor, err := writer()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				var req engine.SaveRequest
				if err := a.schemas.DecodeFile(file, schema.KindProperty, &req); err != nil {
					return err
				}
				agg, err := a.engine.SaveVersion(cmd.Context(), key, revision, req, actor)
				if err != nil {
					return err
				}
				return printAggregate(os.Stdout, agg)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "property document (YAML or JSON)")
	cmd.Flags().Int64VarP(&revision, "revision", "r", -1, "expected current revision")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newPropertySaveAsCommand() *cobra.Command {
	var (
		file     string
		revision int64
	)

	cmd := &cobra.Command{
		Use:   "save-as <property-id> <version> --revision N [--file draft.yaml]",
		Short: "Branch a version into the next minor version",
		Long: `Copy the latest version into the next minor version of the property and mark
every earlier version historical. Without --file the stored content is copied
as is. A draft file must carry all of propertyDetails, underwritingInputs,
brokers and tenants.`,
		Example: `  rentroll property save-as tower-1 1.0 --revision 3
  rentroll property save-as tower-1 1.0 --revision 3 --file draft.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args)
			if err != nil {
				return err
			}
			if err := checkRevision(revision); err != nil {
				return err
			}
			actor, err := writer()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				var draft property.Draft = property.NoDraft{}
				if file != "" {
					var fields property.DraftFields
					if err := a.schemas.DecodeFile(file, schema.KindDraft, &fields); err != nil {
						return err
					}
					if draft, err = fields.Resolve(); err != nil {
						return err
					}
				}

				agg, err := a.engine.SaveAs(cmd.Context(), key, revision, draft, actor)
				if err != nil {
					return err
				}
				if !jsonOutput {
					fmt.Printf("✓ Branched %s %s into %s\n\n", key.PropertyID, key.Version, agg.Version)
				}
				return printAggregate(os.Stdout, agg)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "draft document (YAML or JSON)")
	cmd.Flags().Int64VarP(&revision, "revision", "r", -1, "expected revision of the source version")

	return cmd
}
