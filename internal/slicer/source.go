package slicer

import (
	"fmt"
	"image"

	"github.com/kiesman99/imslice/internal/imageops"
	"github.com/kiesman99/imslice/pkg/tile"
)

// Source is the image to slice: either a file on disk or an already decoded
// image. Build one with FromPath or FromImage.
type Source struct {
	path string
	img  image.Image
}

// FromPath slices the image stored at path.
func FromPath(path string) Source {
	return Source{path: path}
}

// FromImage slices an image that is already decoded.
func FromImage(img image.Image) Source {
	return Source{img: img}
}

func (s Source) String() string {
	if s.img != nil {
		return "<image>"
	}
	return s.path
}

// open resolves the source once, returning the image and its size.
func (s Source) open(ops imageops.Ops) (image.Image, tile.Dimensions, error) {
	img := s.img
	if img == nil {
		if s.path == "" {
			return nil, tile.Dimensions{}, fmt.Errorf("%w: no source given", tile.ErrSourceUnreadable)
		}
		var err error
		img, err = ops.Open(s.path)
		if err != nil {
			return nil, tile.Dimensions{}, fmt.Errorf("%w: %w", tile.ErrSourceUnreadable, err)
		}
	}
	return img, tile.DimensionsOf(img), nil
}
