package joiner

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/kiesman99/imslice/internal/imageops"
	"github.com/kiesman99/imslice/internal/logging"
	"github.com/kiesman99/imslice/pkg/tile"
)

// Options configures a Joiner
type Options struct {
	// Ops performs the pixel work. Defaults to imageops.Default().
	Ops imageops.Ops
	// Strict rejects tile sets where two files decode to the same coordinate.
	// By default the lexically last file wins.
	Strict bool
	// Logger receives progress events. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Joiner reassembles tile files into one image
type Joiner struct {
	ops    imageops.Ops
	strict bool
	logger *slog.Logger
}

// New creates a new joiner instance
func New(opts *Options) *Joiner {
	if opts == nil {
		opts = &Options{}
	}

	ops := opts.Ops
	if ops == nil {
		ops = imageops.Default()
	}

	return &Joiner{
		ops:    ops,
		strict: opts.Strict,
		logger: logging.OrNop(opts.Logger).With("comp", "joiner"),
	}
}

// Join reads the tiles in tilesDir named by tmpl and writes the reassembled
// image to outputPath.
func (j *Joiner) Join(ctx context.Context, tilesDir string, tmpl tile.Template, outputPath string) error {
	start := time.Now()

	if _, err := os.Stat(tilesDir); err != nil {
		return fmt.Errorf("%w: tiles directory: %w", tile.ErrIO, err)
	}

	img, err := j.Assemble(ctx, os.DirFS(tilesDir), tmpl)
	if err != nil {
		return err
	}

	if err := j.ops.Write(img, outputPath); err != nil {
		return fmt.Errorf("%w: %w", tile.ErrIO, err)
	}

	b := img.Bounds()
	j.logger.Info("joined", "output", outputPath, "width", b.Dx(), "height", b.Dy(),
		"dur_ms", time.Since(start).Milliseconds())
	return nil
}

// Assemble discovers and validates the tiles in the root of fsys, then folds
// each row left to right and the rows top to bottom.
func (j *Joiner) Assemble(ctx context.Context, fsys fs.FS, tmpl tile.Template) (image.Image, error) {
	set, err := Discover(fsys, tmpl)
	if err != nil {
		return nil, err
	}
	if len(set.Shadowed) > 0 {
		if j.strict {
			return nil, set.CheckDuplicates()
		}
		j.logger.Warn("duplicate tiles ignored", "files", set.Shadowed)
	}

	rows, cols, err := set.Validate(ctx)
	if err != nil {
		return nil, err
	}
	j.logger.Info("joining", "rows", rows, "columns", cols)

	// widths of row 0; every later row must match column by column
	colWidths := make([]int, cols)

	var result image.Image
	for r := 0; r < rows; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var rowImg image.Image
		rowHeight := 0
		for c := 0; c < cols; c++ {
			coord := tile.Coordinate{Row: r, Col: c}
			name := set.Files[coord]

			t, err := j.ops.Load(fsys, name)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", tile.ErrIO, err)
			}

			b := t.Bounds()
			if c == 0 {
				rowHeight = b.Dy()
			} else if b.Dy() != rowHeight {
				return nil, fmt.Errorf("%w: tile %v (%s) is %d pixels high, row %d is %d", tile.ErrIncompatibleTiles, coord, name, b.Dy(), r, rowHeight)
			}
			if r == 0 {
				colWidths[c] = b.Dx()
			} else if b.Dx() != colWidths[c] {
				return nil, fmt.Errorf("%w: tile %v (%s) is %d pixels wide, column %d is %d", tile.ErrIncompatibleTiles, coord, name, b.Dx(), c, colWidths[c])
			}

			if rowImg == nil {
				rowImg = t
			} else {
				rowImg = j.ops.ConcatHorizontal(rowImg, t)
			}
		}

		if result == nil {
			result = rowImg
		} else {
			result = j.ops.ConcatVertical(result, rowImg)
		}
		j.logger.Debug("row joined", "row", r)
	}
	return result, nil
}
