package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kiesman99/imslice/internal/api"
	"github.com/kiesman99/imslice/internal/fetch"
	"github.com/kiesman99/imslice/internal/imageops"
	"github.com/kiesman99/imslice/internal/server"
	"github.com/kiesman99/imslice/pkg/tile"
)

func newPlanCmd(a *app) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan SOURCE",
		Short: "Show the tile grid for an image without writing anything",
		Long: `Read only the header of SOURCE and print the grid, the tile size and the
region and file name of every tile that slice would produce.

SOURCE may be a local path or an http(s) URL.

Examples:
  imslice plan photo.jpg -n 12
  imslice plan photo.jpg --tile-size 256,256 --json`,
		Args: pairArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindFlags(cmd, map[string]string{"format": "format"})
		},
		RunE: a.runPlan,
	}

	addGridFlags(planCmd)
	planCmd.Flags().StringP("format", "f", tile.DefaultTemplate, "tile file name template with {row} and {col}")
	planCmd.Flags().Bool("json", false, "print the plan as JSON")
	addSourceFlags(planCmd)

	return planCmd
}

func (a *app) runPlan(cmd *cobra.Command, args []string) error {
	spec, args, err := gridSpecFromFlags(cmd, args, 1)
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

	dims, err := a.sourceDimensions(cmd, args[0])
	if err != nil {
		return err
	}

	plan, err := server.Plan(tmpl, dims, spec)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	return printPlan(cmd, plan)
}

// sourceDimensions reads only the header of a local source. URL sources
// are downloaded in full.
func (a *app) sourceDimensions(cmd *cobra.Command, source string) (tile.Dimensions, error) {
	if fetch.IsURL(source) {
		img, err := a.download(cmd, source)
		if err != nil {
			return tile.Dimensions{}, err
		}
		return tile.DimensionsOf(img), nil
	}

	dims, err := imageops.Dimensions(os.DirFS(filepath.Dir(source)), filepath.Base(source))
	if err != nil {
		return tile.Dimensions{}, fmt.Errorf("%w: %w", tile.ErrSourceUnreadable, err)
	}
	return dims, nil
}

func printPlan(cmd *cobra.Command, plan api.PlanResponse) error {
	out := cmd.OutOrStdout()
	g := plan.Geometry
	fmt.Fprintf(out, "Image:     %dx%d\n", plan.Image.Width, plan.Image.Height)
	fmt.Fprintf(out, "Grid:      %d columns x %d rows (%d tiles)\n", g.Columns, g.Rows, len(plan.Tiles))
	fmt.Fprintf(out, "Tile size: %dx%d\n\n", g.TileWidth, g.TileHeight)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tCOL\tLEFT\tTOP\tWIDTH\tHEIGHT\tFILE")
	for _, t := range plan.Tiles {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			t.Row, t.Col, t.Region.Left, t.Region.Top, t.Region.Width, t.Region.Height, t.Filename)
	}
	return tw.Flush()
}
