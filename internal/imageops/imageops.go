// Package imageops adapts github.com/disintegration/imaging to the small set
// of pixel operations the slicer and joiner need.
package imageops

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers webp decoding

	"github.com/kiesman99/imslice/pkg/tile"
)

// Ops is the image collaborator used by the slicer and joiner. Handles are
// plain image.Image values.
type Ops interface {
	// Open decodes the image stored at path.
	Open(path string) (image.Image, error)
	// Load decodes the image stored at name inside fsys.
	Load(fsys fs.FS, name string) (image.Image, error)
	// Crop returns the part of img covered by r. r is relative to the
	// top-left corner of img.
	Crop(img image.Image, r tile.Region) image.Image
	// ConcatHorizontal places b to the right of a.
	ConcatHorizontal(a, b image.Image) image.Image
	// ConcatVertical places b below a.
	ConcatVertical(a, b image.Image) image.Image
	// Write encodes img to path using the format implied by its extension.
	Write(img image.Image, path string) error
	// Encode writes img to w using the format implied by name's extension.
	Encode(w io.Writer, img image.Image, name string) error
}

// Imaging implements Ops on top of the imaging package.
type Imaging struct {
	// JPEGQuality is used for .jpg/.jpeg output; zero keeps the imaging default.
	JPEGQuality int
}

// Default returns the Ops used when none is configured.
func Default() Ops {
	return Imaging{}
}

func (m Imaging) Open(path string) (image.Image, error) {
	img, err := imaging.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return img, nil
}

func (m Imaging) Load(fsys fs.FS, name string) (image.Image, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	img, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

func (m Imaging) Crop(img image.Image, r tile.Region) image.Image {
	// imaging.Crop works in absolute coordinates
	return imaging.Crop(img, r.Rect().Add(img.Bounds().Min))
}

func (m Imaging) ConcatHorizontal(a, b image.Image) image.Image {
	ab, bb := a.Bounds(), b.Bounds()
	dst := imaging.New(ab.Dx()+bb.Dx(), max(ab.Dy(), bb.Dy()), color.Transparent)
	dst = imaging.Paste(dst, a, image.Pt(0, 0))
	return imaging.Paste(dst, b, image.Pt(ab.Dx(), 0))
}

func (m Imaging) ConcatVertical(a, b image.Image) image.Image {
	ab, bb := a.Bounds(), b.Bounds()
	dst := imaging.New(max(ab.Dx(), bb.Dx()), ab.Dy()+bb.Dy(), color.Transparent)
	dst = imaging.Paste(dst, a, image.Pt(0, 0))
	return imaging.Paste(dst, b, image.Pt(0, ab.Dy()))
}

func (m Imaging) Write(img image.Image, path string) error {
	if err := imaging.Save(img, path, m.encodeOptions()...); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (m Imaging) Encode(w io.Writer, img image.Image, name string) error {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := imaging.Encode(w, img, format, m.encodeOptions()...); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return nil
}

func (m Imaging) encodeOptions() []imaging.EncodeOption {
	if m.JPEGQuality > 0 {
		return []imaging.EncodeOption{imaging.JPEGQuality(m.JPEGQuality)}
	}
	return nil
}

// CheckFormat reports whether name carries an extension Write can encode.
func CheckFormat(name string) error {
	if _, err := imaging.FormatFromFilename(name); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Decode reads an image in any registered format from r.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// Dimensions reads only the header of the image stored at name in fsys.
func Dimensions(fsys fs.FS, name string) (tile.Dimensions, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return tile.Dimensions{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return tile.Dimensions{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return tile.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}
