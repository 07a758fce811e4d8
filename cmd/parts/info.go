package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/parts/internal/farm"
	"github.com/ZebulonRouseFrantzich/parts/internal/parts"
)

func newInfoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show package details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			pkg, err := a.registry.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			versions, err := a.installedVersions(args[0])
			if err != nil {
				return err
			}
			return a.printInfo(cmd.OutOrStdout(), pkg, versions)
		},
	}
}

func (a *app) printInfo(out io.Writer, pkg parts.Package, versions []string) error {
	def := pkg.Definition()

	fmt.Fprintf(out, "%s %s\n", def.Name, def.Version)
	if def.Description != "" {
		fmt.Fprintf(out, "  %s\n", def.Description)
	}
	fmt.Fprintln(out)
	if def.SourceURL != "" {
		fmt.Fprintf(out, "Source:     %s\n", def.SourceURL)
	}
	if len(def.Dependencies) > 0 {
		fmt.Fprintf(out, "Depends on: %s\n", strings.Join(def.Dependencies, ", "))
	}
	if len(versions) == 0 {
		fmt.Fprintln(out, "Installed:  no")
	} else {
		fmt.Fprintf(out, "Installed:  %s\n", strings.Join(versions, ", "))
	}

	links, err := a.ownedExecutables(parts.NewLayout(a.paths.Packages(), def))
	if err != nil {
		return err
	}
	if len(links) > 0 {
		fmt.Fprintf(out, "Commands:   %s\n", strings.Join(links, ", "))
	}

	if tips := strings.TrimSpace(pkg.Tips()); tips != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, tips)
	}
	return nil
}

// ownedExecutables lists the shared bin and sbin entries that link into
// the package's prefix.
func (a *app) ownedExecutables(layout parts.Layout) ([]string, error) {
	var names []string
	for _, ns := range parts.Namespaces {
		if !ns.ExecutableOnly {
			continue
		}
		dir := filepath.Join(a.paths.Root, ns.Dir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			if farm.Owns(filepath.Join(dir, entry.Name()), layout.Prefix) {
				names = append(names, entry.Name())
			}
		}
	}
	return names, nil
}
