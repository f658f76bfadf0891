package server

import (
	"github.com/kiesman99/imslice/internal/api"
	"github.com/kiesman99/imslice/pkg/tile"
)

// Plan resolves spec for an image of size dims and lists every tile with
// the file name tmpl gives it.
func Plan(tmpl tile.Template, dims tile.Dimensions, spec tile.GridSpec) (api.PlanResponse, error) {
	geom, err := tile.Resolve(spec, dims)
	if err != nil {
		return api.PlanResponse{}, err
	}

	records := tile.Layout(geom, dims)
	plan := api.PlanResponse{
		Format: tmpl.String(),
		Geometry: api.TileGeometry{
			Columns:    geom.Columns,
			Rows:       geom.Rows,
			TileWidth:  geom.TileWidth,
			TileHeight: geom.TileHeight,
		},
		Image: api.ImageSize{Width: dims.Width, Height: dims.Height},
		Tiles: make([]api.PlannedTile, len(records)),
	}
	for i, rec := range records {
		plan.Tiles[i] = api.PlannedTile{
			Row:      rec.Row,
			Col:      rec.Col,
			Filename: tmpl.Format(rec.Row, rec.Col),
			Region: api.TileRegion{
				Left:   rec.Region.Left,
				Top:    rec.Region.Top,
				Width:  rec.Region.Width,
				Height: rec.Region.Height,
			},
		}
	}
	return plan, nil
}
