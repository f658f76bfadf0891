package slicer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/imslice/internal/imageops"
	"github.com/kiesman99/imslice/internal/logging"
	"github.com/kiesman99/imslice/pkg/tile"
)

// Options configures a Slicer
type Options struct {
	// Ops performs the pixel work. Defaults to imageops.Default().
	Ops imageops.Ops
	// Workers is the number of cells cropped and written concurrently.
	// Values below 2 slice sequentially.
	Workers int
	// Logger receives progress events. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Tile is one cropped cell of the source image
type Tile struct {
	tile.Record
	Image image.Image
}

// Slicer cuts images into grids of tile files
type Slicer struct {
	ops     imageops.Ops
	workers int
	logger  *slog.Logger
}

// New creates a new slicer instance
func New(opts *Options) *Slicer {
	if opts == nil {
		opts = &Options{}
	}

	ops := opts.Ops
	if ops == nil {
		ops = imageops.Default()
	}

	return &Slicer{
		ops:     ops,
		workers: opts.Workers,
		logger:  logging.OrNop(opts.Logger).With("comp", "slicer"),
	}
}

// Generate crops every cell of src and hands it to fn in row-major order
// without writing anything. Iteration stops at the first error from fn.
func (s *Slicer) Generate(ctx context.Context, src Source, spec tile.GridSpec, fn func(Tile) error) (tile.Geometry, error) {
	img, geom, records, err := s.prepare(src, spec)
	if err != nil {
		return tile.Geometry{}, err
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return geom, err
		}
		if err := fn(Tile{Record: rec, Image: s.ops.Crop(img, rec.Region)}); err != nil {
			return geom, err
		}
	}
	return geom, nil
}

// Slice cuts src into tiles named by tmpl and writes them to outDir, which is
// created if needed. The written paths are returned in row-major order.
//
// Tiles written before a failure are left in place.
func (s *Slicer) Slice(ctx context.Context, src Source, spec tile.GridSpec, tmpl tile.Template, outDir string) ([]string, error) {
	start := time.Now()

	img, geom, records, err := s.prepare(src, spec)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output directory: %w", tile.ErrIO, err)
	}

	s.logger.Info("slicing", "source", src.String(), "columns", geom.Columns, "rows", geom.Rows,
		"tile_width", geom.TileWidth, "tile_height", geom.TileHeight, "output", outDir)

	paths := make([]string, len(records))
	write := func(i int) error {
		rec := records[i]
		path := filepath.Join(outDir, tmpl.Format(rec.Row, rec.Col))
		if err := s.ops.Write(s.ops.Crop(img, rec.Region), path); err != nil {
			return fmt.Errorf("%w: tile %v: %w", tile.ErrIO, rec.Coordinate, err)
		}
		s.logger.Debug("tile written", "row", rec.Row, "col", rec.Col, "path", path,
			"width", rec.Region.Width, "height", rec.Region.Height)
		paths[i] = path
		return nil
	}

	if s.workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i := range records {
			i := i
			// Stop scheduling once a tile has failed
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return write(i)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	} else {
		for i := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := write(i); err != nil {
				return nil, err
			}
		}
	}

	s.logger.Info("sliced", "tiles", len(paths), "dur_ms", time.Since(start).Milliseconds())
	return paths, nil
}

// prepare validates spec before touching the source, then opens the source
// and lays out its cells.
func (s *Slicer) prepare(src Source, spec tile.GridSpec) (image.Image, tile.Geometry, []tile.Record, error) {
	if err := spec.Validate(); err != nil {
		return nil, tile.Geometry{}, nil, err
	}

	img, dims, err := src.open(s.ops)
	if err != nil {
		return nil, tile.Geometry{}, nil, err
	}

	geom, err := tile.Resolve(spec, dims)
	if err != nil {
		return nil, tile.Geometry{}, nil, err
	}
	return img, geom, tile.Layout(geom, dims), nil
}
