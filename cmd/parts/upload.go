package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/parts/internal/publish"
)

func newUploadCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <name>",
		Short: "Publish an archived package to the binary bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			bucket := a.settings.Publish.Bucket
			if bucket == "" {
				return errors.New("publish.bucket is not set in parts.yaml")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			pkg, err := a.registry.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			def := pkg.Definition()

			uploader, err := publish.NewGCSUploader(ctx, bucket, a.settings.Publish.CredentialsFile)
			if err != nil {
				return err
			}
			defer uploader.Close()

			fmt.Fprintf(out, "=> Uploading %s %s...\n", def.Name, def.Version)
			keys, err := publish.New(a.paths.Archives(), uploader, a.logger).Upload(ctx, def)
			if err != nil {
				var missing *publish.MissingArchiveError
				if errors.As(err, &missing) {
					return fmt.Errorf("%w (run: parts archive %s)", err, def.Name)
				}
				return err
			}
			for _, key := range keys {
				fmt.Fprintf(out, "✓ gs://%s/%s\n", bucket, key)
			}
			return nil
		},
	}
}
