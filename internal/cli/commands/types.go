package commands

import (
	"github.com/spf13/cobra"

	"github.com/Kirdow/Coral/internal/catalog"
	"github.com/Kirdow/Coral/internal/cli/ui"
)

// NewTypesCommand creates the types command
func NewTypesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the types a catalog defines",
		Long: `List every type in the catalog, built-in System types included,
with its assembly-qualified name and base type.`,
		Args: cobra.NoArgs,
		RunE: runTypes,
	}

	cmd.Flags().String("catalog", "", "catalog file (default: catalog.path from the config)")
	return cmd
}

func runTypes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("catalog") {
		cfg.Catalog.Path, _ = cmd.Flags().GetString("catalog")
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx := cmd.Context()
	table := ui.NewTable(cmd.OutOrStdout(), []string{"Type", "Assembly-qualified name", "Base"}, &ui.TableOptions{NoColor: noColor(cmd)})
	for _, name := range cat.Names() {
		rec, err := cat.ResolveType(ctx, name)
		if err != nil {
			return err
		}
		base := rec.BaseTypeName
		if base == "" {
			base = "-"
		}
		table.AddRow(rec.FullName, rec.AssemblyQualifiedName, base)
	}
	table.Render()
	return nil
}
