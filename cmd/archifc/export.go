package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"archifc/internal/converter/mapper"
	"archifc/internal/converter/models"
	"archifc/internal/document"
	"archifc/internal/exporter"
	"archifc/internal/importer"
)

func exportCmd() *cobra.Command {
	var output string
	var objects []string
	var brep, list, separate bool
	var scale float64
	cmd := &cobra.Command{
		Use:   "export <scene.json|file.ifc>",
		Short: "Write a scene, or a re-imported IFC file, as IFC2X3",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := loadPrefs()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("brep") {
				prefs.ExportAsBrep = brep
			}
			if flags.Changed("list") {
				prefs.ExportList = list
			}
			if flags.Changed("separate-openings") {
				prefs.SeparateOpenings = separate
			}
			if flags.Changed("scale") && scale > 0 {
				prefs.ScalingFactor = scale
			}

			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			objs, err := mapper.Select(doc, objects)
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".ifc"
				if output == args[0] {
					output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + "_export.ifc"
				}
			}

			rep, err := exporter.New(doc, prefs, exporter.Options{Application: "archifc", Version: version}).Export(objs, output)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Exported %d objects to %s.\n", rep.Exported, rep.File)
			if rep.Manifest != "" {
				fmt.Fprintf(out, "  Manifest: %s\n", rep.Manifest)
			}
			if len(rep.Unprocessed) > 0 {
				fmt.Fprintf(out, "\nNot exported (%d):\n", len(rep.Unprocessed))
				for _, name := range rep.Unprocessed {
					fmt.Fprintf(out, "  - %s\n", name)
				}
			}
			if prefs.Debug {
				for _, n := range rep.Notes {
					fmt.Fprintf(out, "  note: %s\n", n)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Target IFC file (default: input name with .ifc)")
	cmd.Flags().StringSliceVar(&objects, "object", nil, "Export only these objects (name or label)")
	cmd.Flags().BoolVar(&brep, "brep", false, "Write every object as a faceted brep")
	cmd.Flags().BoolVar(&list, "list", false, "Write the .txt manifest next to the IFC file")
	cmd.Flags().BoolVar(&separate, "separate-openings", false, "Write subtractions as IfcOpeningElement")
	cmd.Flags().Float64Var(&scale, "scale", 1, "Scaling factor applied to all coordinates")
	return cmd
}

// loadDocument читает JSON сцены или импортирует IFC-файл.
func loadDocument(path string) (*document.Document, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		prefs, err := loadPrefs()
		if err != nil {
			return nil, err
		}
		doc, _, err := importer.Open(path, prefs, importOptions(nil))
		return doc, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	var scene models.Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}
	return mapper.ToDocument(&scene)
}
