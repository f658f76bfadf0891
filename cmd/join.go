package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiesman99/imslice/internal/imageops"
	"github.com/kiesman99/imslice/internal/joiner"
	"github.com/kiesman99/imslice/pkg/tile"
)

func newJoinCmd(a *app) *cobra.Command {
	joinCmd := &cobra.Command{
		Use:   "join TILES_DIR OUTPUT_PATH",
		Short: "Reassemble a directory of tiles into one image",
		Long: `Read every file in TILES_DIR whose name matches the template, check that
the grid is complete, and write the joined image to OUTPUT_PATH. The output
format follows the extension of OUTPUT_PATH.

Examples:
  imslice join tiles/ joined.png
  imslice join tiles/ joined.jpg -f 'img_{row}x{col}.jpg' --strict`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindFlags(cmd, map[string]string{"format": "format"})
		},
		RunE: a.runJoin,
	}

	joinCmd.Flags().StringP("format", "f", tile.DefaultTemplate, "tile file name template with {row} and {col}")
	joinCmd.Flags().Bool("strict", false, "fail when two files name the same tile instead of using the last one")

	return joinCmd
}

func (a *app) runJoin(cmd *cobra.Command, args []string) error {
	tmpl, err := a.template(false)
	if err != nil {
		return err
	}

	tilesDir, output := args[0], args[1]
	if err := imageops.CheckFormat(output); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	strict, _ := cmd.Flags().GetBool("strict")
	j := joiner.New(&joiner.Options{
		Strict: strict,
		Logger: a.logger,
	})

	if err := j.Join(cmd.Context(), tilesDir, tmpl, output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Joined %s into %s\n", tilesDir, output)
	return nil
}
