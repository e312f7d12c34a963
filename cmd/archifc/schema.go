package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archifc/internal/ifc/schema"
	"archifc/internal/importer"
)

func schemaCmd() *cobra.Command {
	var custom, cache, url string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Locate, download and load the IFC EXPRESS schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if coreSchema {
				fmt.Fprintf(out, "Bundled core schema: %d entities\n", schema.Core().Len())
				return nil
			}

			prefs, err := loadPrefs()
			if err != nil {
				return err
			}
			if custom != "" {
				prefs.CustomSchema = custom
			}
			if cache != "" {
				prefs.SchemaCacheDir = cache
			}
			if url != "" {
				prefs.SchemaURL = url
			}
			// запасная схема скрыла бы здесь отсутствие файла схемы
			prefs.AllowCoreSchema = false

			s, err := importer.SchemaLoader(prefs)()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Schema loaded: %d entities\n", s.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&custom, "custom", "", "Path of a local EXPRESS file")
	cmd.Flags().StringVar(&cache, "cache", "", "Directory for downloaded schemas")
	cmd.Flags().StringVar(&url, "url", "", "Where to download the schema from")
	return cmd
}
