package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kiesman99/imslice/internal/slicer"
	"github.com/kiesman99/imslice/pkg/storage"
	"github.com/kiesman99/imslice/pkg/tile"
)

func newSliceCmd(a *app) *cobra.Command {
	sliceCmd := &cobra.Command{
		Use:   "slice SOURCE OUTPUT_DIR",
		Short: "Cut an image into a grid of tile files",
		Long: `Cut SOURCE into a grid of tiles and write them to OUTPUT_DIR, which is
created if it does not exist. Existing files with the same names are
overwritten. SOURCE may be a local path or an http(s) URL.

The grid is given by exactly one of --grid, --number-of-tiles or --tile-size.
Edge tiles are smaller when the image does not divide evenly.

Examples:
  imslice slice photo.jpg tiles/ --grid 2,3
  imslice slice photo.jpg tiles/ -n 12 -f 'img_{row}x{col}.jpg'
  imslice slice photo.jpg tiles/ -t 256,256 --workers 4
  imslice slice photo.jpg tiles/ -g 4,4 --upload --bucket tiles --prefix photo
  imslice slice https://example.com/map.png tiles/ -n 16 --header Referer=https://example.com`,
		Args: pairArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindFlags(cmd, map[string]string{
				"format":    "format",
				"workers":   "workers",
				"s3.bucket": "bucket",
				"s3.prefix": "prefix",
			})
		},
		RunE: a.runSlice,
	}

	addGridFlags(sliceCmd)
	sliceCmd.Flags().StringP("format", "f", tile.DefaultTemplate, "tile file name template with {row} and {col}")
	sliceCmd.Flags().Int("workers", 1, "number of tiles cropped and written concurrently")
	sliceCmd.Flags().Bool("upload", false, "upload the written tiles to S3")
	sliceCmd.Flags().String("bucket", "", "S3 bucket used by --upload")
	sliceCmd.Flags().String("prefix", "", "S3 key prefix used by --upload")
	addSourceFlags(sliceCmd)

	return sliceCmd
}

func (a *app) runSlice(cmd *cobra.Command, args []string) error {
	spec, args, err := gridSpecFromFlags(cmd, args, 2)
	if err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	tmpl, err := a.template(true)
	if err != nil {
		return err
	}

	upload, _ := cmd.Flags().GetBool("upload")
	storageCfg := a.storageConfig()
	if upload && storageCfg.Bucket == "" {
		return fmt.Errorf("--upload needs a bucket (--bucket, s3.bucket or IMSLICE_S3_BUCKET)")
	}

	s := slicer.New(&slicer.Options{
		Workers: a.v.GetInt("workers"),
		Logger:  a.logger,
	})

	source, err := a.openSource(cmd, args[0])
	if err != nil {
		return err
	}

	outDir := args[1]
	paths, err := s.Slice(cmd.Context(), source, spec, tmpl, outDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tiles to %s\n", len(paths), outDir)

	if !upload {
		return nil
	}
	return a.upload(cmd.Context(), cmd.OutOrStdout(), storageCfg, paths)
}

func (a *app) storageConfig() storage.Config {
	return storage.Config{
		Endpoint:  a.v.GetString("s3.endpoint"),
		Region:    a.v.GetString("s3.region"),
		AccessKey: a.v.GetString("s3.access-key"),
		SecretKey: a.v.GetString("s3.secret-key"),
		Bucket:    a.v.GetString("s3.bucket"),
		Prefix:    a.v.GetString("s3.prefix"),
		PathStyle: a.v.GetBool("s3.path-style"),
	}
}

func (a *app) upload(ctx context.Context, out io.Writer, cfg storage.Config, paths []string) error {
	client, err := storage.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	uploader, err := storage.NewUploader(client, cfg, a.logger)
	if err != nil {
		return err
	}
	if err := uploader.EnsureBucket(ctx); err != nil {
		return err
	}

	keys, err := uploader.UploadFiles(ctx, paths)
	if err != nil {
		return fmt.Errorf("uploaded %d of %d tiles: %w", len(keys), len(paths), err)
	}
	fmt.Fprintf(out, "Uploaded %d tiles to s3://%s/%s\n", len(keys), cfg.Bucket, cfg.Prefix)
	return nil
}
