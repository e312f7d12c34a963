package main

import (
	"os"

	"github.com/spf13/cobra"

	"archifc/internal/common/config"
	"archifc/internal/ifc/schema"
	"archifc/internal/importer"
)

var (
	prefsPath     string
	forceInternal bool
	coreSchema    bool
	debug         bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "archifc",
		Short:        "Import and export IFC building models",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")

	root.PersistentFlags().StringVar(&prefsPath, "prefs", os.Getenv("ARCHIFC_PREFS"), "YAML preferences file")
	root.PersistentFlags().BoolVar(&forceInternal, "internal", false, "Force the bundled STEP parser")
	root.PersistentFlags().BoolVar(&coreSchema, "core-schema", false, "Use the bundled schema subset instead of locating one")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Verbose import/export logging")

	root.AddCommand(importCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(exploreCmd())
	root.AddCommand(schemaCmd())
	root.AddCommand(versionCmd())
	return root
}

// loadPrefs читает настройки и применяет поверх них глобальные флаги.
func loadPrefs() (config.Preferences, error) {
	prefs, err := config.LoadPreferences(prefsPath)
	if err != nil {
		return prefs, err
	}
	if forceInternal {
		prefs.ForceInternalParser = true
	}
	if debug {
		prefs.Debug = true
	}
	return prefs, nil
}

func importOptions(skipIDs []int) importer.Options {
	opts := importer.Options{SkipIDs: skipIDs}
	if coreSchema {
		opts.LoadSchema = func() (*schema.Schema, error) { return schema.Core(), nil }
	}
	return opts
}
