package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"archifc/internal/ifc/schema"
	"archifc/internal/ifc/step"
)

func exploreCmd() *cobra.Command {
	var types []string
	var limit int
	cmd := &cobra.Command{
		Use:   "explore <file.ifc>",
		Short: "List the entities of an IFC file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			file, err := step.Parse(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			core := schema.Core()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d entities, schema %s\n", args[0], len(file.Order), strings.Join(file.Header.Schemas, ","))

			shown := 0
			for _, id := range file.Order {
				in := file.Instances[id]
				name := core.Canonical(in.Type)
				if len(types) > 0 && !matchType(types, core, in.Type) {
					continue
				}
				label := ""
				if len(in.Args) > 2 {
					label, _ = in.Args[2].AsString()
				}
				fmt.Fprintf(out, "#%-6d %-32s %s\n", id, name, label)
				shown++
				if limit > 0 && shown >= limit {
					break
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Show only these entity types (subtypes included)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many entities")
	return cmd
}

func matchType(types []string, s *schema.Schema, typ string) bool {
	for _, t := range types {
		if strings.EqualFold(t, typ) || s.IsA(typ, t) {
			return true
		}
	}
	return false
}
