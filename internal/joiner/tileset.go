package joiner

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/kiesman99/imslice/pkg/tile"
)

// TileSet maps grid coordinates to tile file names.
type TileSet struct {
	Files map[tile.Coordinate]string
	// Shadowed lists names that parsed to a coordinate already claimed by a
	// later entry.
	Shadowed []string
}

// Discover scans the root of fsys for files whose names match tmpl. Files
// that do not match are skipped. Entries are visited in lexical order, so
// when two names decode to the same coordinate the later one wins.
func Discover(fsys fs.FS, tmpl tile.Template) (*TileSet, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("%w: list tiles: %w", tile.ErrIO, err)
	}

	set := &TileSet{Files: make(map[tile.Coordinate]string)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		c, ok := tmpl.Parse(e.Name())
		if !ok {
			continue
		}
		// follows symlinks; dangling links and links to directories are skipped
		if info, err := fs.Stat(fsys, e.Name()); err != nil || !info.Mode().IsRegular() {
			continue
		}
		if prev, dup := set.Files[c]; dup {
			set.Shadowed = append(set.Shadowed, prev)
		}
		set.Files[c] = e.Name()
	}

	if len(set.Files) == 0 {
		return nil, fmt.Errorf("%w: no files match %q", tile.ErrNoTilesFound, tmpl.String())
	}
	return set, nil
}

// Size infers the grid from the largest row and column present.
func (s *TileSet) Size() (rows, cols int) {
	for c := range s.Files {
		rows = max(rows, c.Row+1)
		cols = max(cols, c.Col+1)
	}
	return rows, cols
}

// Validate checks that every cell of the inferred grid is present and
// returns the grid size. Grids larger than tile.MaxTiles are rejected before
// any cell is visited. Gaps are reported together in row-major order, the
// first tile.MaxListedMissing of them by coordinate.
func (s *TileSet) Validate(ctx context.Context) (rows, cols int, err error) {
	for c, name := range s.Files {
		if c.Row >= tile.MaxTiles || c.Col >= tile.MaxTiles {
			return 0, 0, fmt.Errorf("%w: %s names tile %v, the limit is %d tiles",
				tile.ErrTooManyTiles, name, c, tile.MaxTiles)
		}
	}
	rows, cols = s.Size()
	if rows*cols > tile.MaxTiles {
		return rows, cols, fmt.Errorf("%w: file names describe %d rows x %d columns, the limit is %d tiles",
			tile.ErrTooManyTiles, rows, cols, tile.MaxTiles)
	}

	missing := &tile.MissingTilesError{}
	for r := 0; r < rows; r++ {
		if err := ctx.Err(); err != nil {
			return rows, cols, err
		}
		for c := 0; c < cols; c++ {
			if _, ok := s.Files[tile.Coordinate{Row: r, Col: c}]; ok {
				continue
			}
			missing.Total++
			if len(missing.Missing) < tile.MaxListedMissing {
				missing.Missing = append(missing.Missing, tile.Coordinate{Row: r, Col: c})
			}
		}
	}
	if missing.Total > 0 {
		return rows, cols, missing
	}
	return rows, cols, nil
}

// CheckDuplicates fails when any coordinate was claimed by more than one file.
func (s *TileSet) CheckDuplicates() error {
	if len(s.Shadowed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", tile.ErrDuplicateTiles, s.Shadowed)
}
