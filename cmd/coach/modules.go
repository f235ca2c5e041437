package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
)

func modulesCmd(load loadFunc) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List available modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ids, err := lesson.NewCatalog(cfg.Modules.Dir, cfg.Modules.Categories).List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !check {
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			loader := lesson.NewLoader(cfg.Modules.Dir, nil)
			bad := 0
			for _, id := range ids {
				mod, err := loader.Load(id)
				if err != nil {
					bad++
					fmt.Fprintf(out, "%-40s  ERROR %v\n", id, err)
					continue
				}
				fmt.Fprintf(out, "%-40s  %-28s %d fields\n", id, mod.ModuleID, len(mod.Fields))
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d modules failed to load", bad, len(ids))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "load and validate each module")
	return cmd
}
