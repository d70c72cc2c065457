package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/agriguard/internal/catalog"
	"github.com/dshills/agriguard/internal/config"
	"github.com/dshills/agriguard/internal/output"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the offline pest catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every pest in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeCatalog(func(c *catalog.Catalog) []catalog.Entry { return c.List() })
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Fuzzy-search pest names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeCatalog(func(c *catalog.Catalog) []catalog.Entry { return c.Search(args[0]) })
	},
}

func writeCatalog(selectEntries func(*catalog.Catalog) []catalog.Entry) error {
	writer, err := output.GetWriter(formatOrDefault())
	if err != nil {
		return err
	}
	cfg, err := config.Load(buildOverrides())
	if err != nil {
		return err
	}
	c, err := loadCatalog(cfg)
	if err != nil {
		fail(err)
		return nil
	}

	w, closeOut, err := output.Open(flagOut)
	if err != nil {
		fail(err)
		return nil
	}
	defer closeOut()
	if err := writer.WriteCatalog(w, selectEntries(c)); err != nil {
		fail(fmt.Errorf("writing output: %w", err))
	}
	return nil
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	for _, cmd := range []*cobra.Command{catalogListCmd, catalogSearchCmd} {
		addOutputFlags(cmd)
		cmd.Flags().StringVar(&flagCatalogFile, "catalog-file", "", "Pest catalog YAML file (default: built-in)")
	}
}
