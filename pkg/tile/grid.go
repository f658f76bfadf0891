package tile

import (
	"fmt"
	"math"
)

// MaxTiles bounds the number of cells in any grid, planned or discovered.
const MaxTiles = 99 * 99

// Resolve derives the tile size and grid for an image of the given dimensions.
//
// An explicit tile size wins outright, then a positive tile count, then an
// explicit column/row grid. The returned grid always equals
// ceil(dims / tile size), so edge cells are the only ones that can be smaller
// than the nominal size and no cell is ever empty. Grids with more than
// MaxTiles cells are rejected.
func Resolve(spec GridSpec, dims Dimensions) (Geometry, error) {
	if err := spec.Validate(); err != nil {
		return Geometry{}, err
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return Geometry{}, fmt.Errorf("%w: image dimensions %dx%d must be positive", ErrInvalidSpecification, dims.Width, dims.Height)
	}

	var tw, th int
	switch {
	case spec.hasTileSize():
		tw, th = spec.TileWidth, spec.TileHeight
	case spec.hasCount():
		rows, cols, _ := GridForCount(spec.Count)
		tw, th = ceilDiv(dims.Width, cols), ceilDiv(dims.Height, rows)
	default:
		tw, th = ceilDiv(dims.Width, spec.Columns), ceilDiv(dims.Height, spec.Rows)
	}

	geom := Geometry{
		TileWidth:  tw,
		TileHeight: th,
		Columns:    ceilDiv(dims.Width, tw),
		Rows:       ceilDiv(dims.Height, th),
	}
	if geom.Columns > MaxTiles || geom.Rows > MaxTiles || geom.Count() > MaxTiles {
		return Geometry{}, fmt.Errorf("%w: %w: %d columns x %d rows exceeds the limit of %d tiles",
			ErrInvalidSpecification, ErrTooManyTiles, geom.Columns, geom.Rows, MaxTiles)
	}
	return geom, nil
}

// Validate reports whether spec can be resolved for some image, without
// needing its dimensions.
func (s GridSpec) Validate() error {
	switch {
	case s.hasTileSize():
		return nil
	case s.hasCount():
		_, _, err := GridForCount(s.Count)
		return err
	case s.hasGrid():
		return nil
	case s.countRequested():
		_, _, err := GridForCount(s.Count)
		return err
	default:
		return fmt.Errorf("%w: specify columns and rows, a number of tiles, or a tile width and height", ErrInvalidSpecification)
	}
}

// GridForCount lays count tiles out as close to a square as possible and
// returns (rows, columns). Counts without a non-trivial factor pair fail with
// an *UngriddableCountError, except for the shortcuts 1, 2 and 3.
func GridForCount(count int) (rows, cols int, err error) {
	if count <= 0 {
		return 0, 0, fmt.Errorf("%w: number of tiles must be a positive integer, got %d", ErrInvalidTileCount, count)
	}
	if count > MaxTiles {
		return 0, 0, fmt.Errorf("%w: %w: number of tiles must be at most %d, got %d", ErrInvalidTileCount, ErrTooManyTiles, MaxTiles, count)
	}

	switch count {
	case 1:
		return 1, 1, nil
	case 2:
		return 1, 2, nil
	case 3:
		return 1, 3, nil
	}

	pairs := factorPairs(count)
	if len(pairs) == 2 && pairs[0][0] == 1 {
		return 0, 0, &UngriddableCountError{Count: count}
	}

	best := pairs[0]
	for _, p := range pairs[1:] {
		if absDiff(p[0], p[1]) < absDiff(best[0], best[1]) {
			best = p
		}
	}
	return best[0], best[1], nil
}

// factorPairs returns every (a, b) with a*b == n, ordered by ascending a.
func factorPairs(n int) [][2]int {
	limit := int(math.Sqrt(float64(n)))
	for (limit+1)*(limit+1) <= n {
		limit++
	}
	var low, high [][2]int
	for a := 1; a <= limit; a++ {
		if n%a != 0 {
			continue
		}
		b := n / a
		low = append(low, [2]int{a, b})
		if a != b {
			high = append(high, [2]int{b, a})
		}
	}
	// high was collected with descending first factor
	for i := len(high) - 1; i >= 0; i-- {
		low = append(low, high[i])
	}
	return low
}

// Layout enumerates every cell of geom in row-major order. Cells on the right
// and bottom edges are clamped to the image bounds.
func Layout(geom Geometry, dims Dimensions) []Record {
	records := make([]Record, 0, geom.Count())
	for row := 0; row < geom.Rows; row++ {
		for col := 0; col < geom.Columns; col++ {
			left := col * geom.TileWidth
			top := row * geom.TileHeight
			records = append(records, Record{
				Coordinate: Coordinate{Row: row, Col: col},
				Region: Region{
					Left:   left,
					Top:    top,
					Width:  min(geom.TileWidth, dims.Width-left),
					Height: min(geom.TileHeight, dims.Height-top),
				},
			})
		}
	}
	return records
}

// ceilDiv divides positive a by positive b, rounding up without overflowing.
func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a-1)/b + 1
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
