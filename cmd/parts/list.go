package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/parts/internal/registry"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var available bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			installed, err := registry.Installed(a.paths.Packages())
			if err != nil {
				return err
			}

			if available {
				if err := a.registry.DiscoverAll(cmd.Context()); err != nil {
					return err
				}
				for _, name := range a.registry.Names() {
					marker := " "
					if _, ok := installed[name]; ok {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s\n", marker, name)
				}
				return nil
			}

			if len(installed) == 0 {
				fmt.Fprintln(out, "No packages installed.")
			} else {
				names := make([]string, 0, len(installed))
				for name := range installed {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "%s %s\n", name, strings.Join(installed[name], ", "))
				}
			}

			unfinished, err := a.journal.Unfinished()
			if err != nil {
				a.logger.Warn("could not read journal", "error", err)
				return nil
			}
			for _, rec := range unfinished {
				fmt.Fprintf(out, "! %s of %s %s did not finish (started %s)\n",
					rec.Operation, rec.Package, rec.PkgVer, rec.Started.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&available, "available", false, "list every package with a recipe; * marks installed ones")
	return cmd
}
