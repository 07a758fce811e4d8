package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUninstallCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <name>...",
		Short: "Uninstall packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			return a.locked(ctx, func() error {
				for _, name := range args {
					pkg, err := a.registry.Resolve(ctx, name)
					if err != nil {
						return err
					}
					def := pkg.Definition()
					fmt.Fprintf(out, "=> Uninstalling %s %s...\n", def.Name, def.Version)
					if err := a.orch.Uninstall(ctx, pkg); err != nil {
						return err
					}
					fmt.Fprintf(out, "✓ Uninstalled %s %s\n", def.Name, def.Version)
				}
				return nil
			})
		},
	}
}
