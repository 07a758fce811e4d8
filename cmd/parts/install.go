package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/parts/internal/lifecycle"
	"github.com/ZebulonRouseFrantzich/parts/internal/registry"
)

func newInstallCmd(opts *globalOptions) *cobra.Command {
	var source bool

	cmd := &cobra.Command{
		Use:   "install <name>...",
		Short: "Install packages and their missing dependencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.locked(ctx, func() error {
				for _, name := range args {
					if err := a.install(ctx, cmd.OutOrStdout(), name, source, nil); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&source, "source", false, "build from source even when a binary is published")
	return cmd
}

// install installs name after any dependency that is not installed yet.
// chain holds the names being installed above this one.
func (a *app) install(ctx context.Context, out io.Writer, name string, source bool, chain []string) error {
	if slices.Contains(chain, name) {
		return fmt.Errorf("dependency cycle: %s -> %s", strings.Join(chain, " -> "), name)
	}

	pkg, err := a.registry.Resolve(ctx, name)
	if err != nil {
		return err
	}
	def := pkg.Definition()

	versions, err := a.installedVersions(name)
	if err != nil {
		return err
	}
	if slices.Contains(versions, def.Version) {
		fmt.Fprintf(out, "%s %s is already installed\n", def.Name, def.Version)
		return nil
	}

	for _, dep := range def.Dependencies {
		installed, err := registry.IsInstalled(a.paths.Packages(), dep)
		if err != nil {
			return err
		}
		if installed {
			continue
		}
		if err := a.install(ctx, out, dep, source, append(chain, name)); err != nil {
			return fmt.Errorf("install dependency of %s: %w", name, err)
		}
	}

	fmt.Fprintf(out, "=> Installing %s %s...\n", def.Name, def.Version)
	if err := a.orch.Install(ctx, pkg, lifecycle.InstallOptions{ForceSource: source}); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Installed %s %s\n", def.Name, def.Version)
	if tips := strings.TrimSpace(pkg.Tips()); tips != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, tips)
	}
	return nil
}

func (a *app) installedVersions(name string) ([]string, error) {
	installed, err := registry.Installed(a.paths.Packages())
	if err != nil {
		return nil, err
	}
	return installed[name], nil
}
