package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newArchiveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <name>",
		Short: "Pack an installed package into a binary archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			return a.locked(ctx, func() error {
				pkg, err := a.registry.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				def := pkg.Definition()
				fmt.Fprintf(out, "=> Archiving %s %s...\n", def.Name, def.Version)
				res, err := a.orch.ArchiveInstalled(ctx, pkg)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Archived: %s\n", res.Path)
				fmt.Fprintf(out, "Size: %d bytes (%.2f MiB)\n", res.Size, float64(res.Size)/1024/1024)
				fmt.Fprintf(out, "SHA1: %s\n", res.SHA1)
				return nil
			})
		},
	}
}
