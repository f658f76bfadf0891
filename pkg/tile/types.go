package tile

import (
	"fmt"
	"image"
)

// DefaultTemplate is the naming template used by the CLI when none is given.
const DefaultTemplate = "tile_{row}_{col}.png"

// Dimensions holds the pixel size of a source image
type Dimensions struct {
	Width, Height int
}

// DimensionsOf returns the size of img's bounds.
func DimensionsOf(img image.Image) Dimensions {
	b := img.Bounds()
	return Dimensions{Width: b.Dx(), Height: b.Dy()}
}

// GridSpec describes how an image should be cut. Callers normally build it
// with ByGrid, ByCount or ByTileSize; when several hints are set, Resolve
// applies them in the order tile size, count, grid.
type GridSpec struct {
	Columns, Rows         int
	Count                 int
	TileWidth, TileHeight int

	// countSet marks an explicit ByCount so that a zero count is rejected
	// instead of being treated as absent.
	countSet bool
}

// ByGrid requests an explicit number of columns and rows.
func ByGrid(columns, rows int) GridSpec {
	return GridSpec{Columns: columns, Rows: rows}
}

// ByCount requests a total number of tiles laid out as close to square as possible.
func ByCount(count int) GridSpec {
	return GridSpec{Count: count, countSet: true}
}

// ByTileSize requests tiles of a fixed pixel size.
func ByTileSize(width, height int) GridSpec {
	return GridSpec{TileWidth: width, TileHeight: height}
}

// hasCount reports a usable count. A non-positive count only matters when
// nothing else describes the grid.
func (s GridSpec) hasCount() bool {
	return s.Count > 0
}

func (s GridSpec) countRequested() bool {
	return s.countSet || s.Count != 0
}

func (s GridSpec) hasTileSize() bool {
	return s.TileWidth > 0 && s.TileHeight > 0
}

func (s GridSpec) hasGrid() bool {
	return s.Columns > 0 && s.Rows > 0
}

// Geometry is the concrete tile size and grid derived from a GridSpec.
type Geometry struct {
	TileWidth  int `json:"tile_width"`
	TileHeight int `json:"tile_height"`
	Columns    int `json:"columns"`
	Rows       int `json:"rows"`
}

// Count returns the number of cells in the grid.
func (g Geometry) Count() int {
	return g.Columns * g.Rows
}

// Coordinate identifies one cell of a grid. Both fields are zero-based.
type Coordinate struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d, %d)", c.Row, c.Col)
}

// Region is a pixel rectangle relative to the top-left corner of the source.
type Region struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts r to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

// Record ties a cell coordinate to its pixel region.
type Record struct {
	Coordinate
	Region Region `json:"region"`
}
