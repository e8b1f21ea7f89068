// Package cmd - CLI command: fibre-cost catalog
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fibre-cost/core/catalog"
	"fibre-cost/core/determinism"
	"fibre-cost/core/output"
	"fibre-cost/internal/config"
	ferrors "fibre-cost/internal/errors"
)

var (
	catalogHCL   bool
	catalogForce bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Cost catalog management commands",
	Long:  "Commands for inspecting, initializing and replacing the active cost catalog.",
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active cost catalog",
	Args:  cobra.NoArgs,
	RunE:  runCatalogShow,
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default cost catalog",
	Long: `Write the built-in default catalog to the configured catalog path.

An existing catalog is left untouched unless --force is given, in which
case the previous catalog is kept as a versioned backup.`,
	Args: cobra.NoArgs,
	RunE: runCatalogInit,
}

var catalogUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Validate and install a cost catalog",
	Long: `Validate a JSON or HCL catalog file and atomically replace the active
catalog with it. The previous catalog is kept as a versioned backup.

Examples:
  fibre-cost catalog upload ./rates-2026q1.json
  fibre-cost catalog upload ./rates-2026q1.hcl`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogUpload,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogShowCmd, catalogInitCmd, catalogUploadCmd)

	catalogShowCmd.Flags().BoolVar(&catalogHCL, "hcl", false, "print the catalog as HCL")
	catalogInitCmd.Flags().BoolVar(&catalogForce, "force", false, "overwrite an existing catalog")
}

func catalogStore() *catalog.FileStore {
	cfg := config.Get()
	return catalog.NewFileStore(cfg.Catalog.Path, cfg.Catalog.VersionsDir)
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	c, err := catalogStore().Load(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case catalogHCL:
		_, err = out.Write(catalog.EncodeHCL(c))
		return err
	case output.Format(outputFormat) == output.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}

	w := newWriter(out)
	w.Header("Cost Catalog")
	w.Debug("loaded from %s", catalogStore().Path())
	w.KeyValue("Version", c.VersionOrUnknown())
	w.KeyValue("Fingerprint", c.Fingerprint().Short())
	if c.Currency != "" {
		w.KeyValue("Currency", c.Currency)
	}

	w.SubHeader("Unit costs")
	table := w.NewTable("Key", "Rate")
	for _, key := range determinism.SortedKeys(c.UnitCosts) {
		table.AddRow(key, fmt.Sprintf("%.2f", c.UnitCosts[key]))
	}
	table.Render()

	for _, category := range catalog.UpliftCategories {
		uplifts := c.Uplifts[category]
		if len(uplifts) == 0 {
			continue
		}
		w.SubHeader("Uplift: " + category)
		table := w.NewTable("Classification", "Multiplier")
		for _, key := range determinism.SortedKeys(uplifts) {
			table.AddRow(key, fmt.Sprintf("%.2f", uplifts[key]))
		}
		table.Render()
	}
	return nil
}

func runCatalogInit(cmd *cobra.Command, args []string) error {
	store := catalogStore()
	if _, err := os.Stat(store.Path()); err == nil && !catalogForce {
		return ferrors.Input(fmt.Sprintf("catalog %s already exists (use --force to overwrite)", store.Path()))
	}

	c := catalog.Default()
	backup, err := store.Save(cmd.Context(), c)
	if err != nil {
		return err
	}

	w := newWriter(cmd.OutOrStdout())
	w.Success("Wrote catalog %s to %s", c.VersionOrUnknown(), store.Path())
	if backup != "" {
		w.Info("Previous catalog kept at %s", backup)
	}
	return nil
}

func runCatalogUpload(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return ferrors.Wrap(ferrors.TypeInput, "read catalog file", err)
	}
	c, err := catalog.Decode(data, args[0])
	if err != nil {
		return ferrors.Wrap(ferrors.TypeInput, "malformed cost catalog", err)
	}

	store := catalogStore()
	backup, err := store.Save(cmd.Context(), c)
	if err != nil {
		return err
	}

	w := newWriter(cmd.OutOrStdout())
	w.Success("Installed catalog %s (%s)", c.VersionOrUnknown(), c.Fingerprint().Short())
	if backup != "" {
		w.Info("Previous catalog kept at %s", backup)
	}
	return nil
}
