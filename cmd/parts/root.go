package main

import (
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	root     string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "parts",
		Short:         "Package manager for prefix-isolated installs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("parts {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&opts.root, "root", "", "parts root directory (default $PARTS_ROOT or ~/.parts)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newInstallCmd(opts),
		newUninstallCmd(opts),
		newListCmd(opts),
		newInfoCmd(opts),
		newArchiveCmd(opts),
		newUploadCmd(opts),
	)
	return rootCmd
}
