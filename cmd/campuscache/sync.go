package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkarema/campuscache/internal/model"
)

// newSyncCmd performs an immediate foreground sync of one domain or all of them.
func newSyncCmd(v *viper.Viper) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync [faculties|programs|course_units|resources|all]",
		Short: "sync a domain (or everything) now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			target := "all"
			if len(args) == 1 {
				target = args[0]
			}

			if target == "all" {
				outcomes, err := a.coord.SyncAll(cmd.Context(), force)
				for d, out := range outcomes {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", d, out)
				}
				return err
			}

			d, err := model.ParseDomain(target)
			if err != nil {
				return err
			}
			out, err := a.coord.Sync(cmd.Context(), d, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", d, out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "sync even if the cache is fresh")
	return cmd
}
