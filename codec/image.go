package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"

	// decoders for every format a phone or camera is likely to hand us
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imageorient"
	"github.com/disintegration/imaging"
)

// DefaultMaxPixels caps decoded images at 100 megapixels.
const DefaultMaxPixels = 100_000_000

// ImageCodec implements Codec on top of the image package, imaging and the
// format registry.
type ImageCodec struct {
	// MaxPixels rejects images whose header announces more pixels than this.
	// Zero disables the check.
	MaxPixels int
	// Filter is the resampling filter; the zero value is nearest neighbor.
	Filter imaging.ResampleFilter
}

// NewImageCodec returns an ImageCodec with the default pixel limit and a
// Lanczos resampler. It also makes sure the default formats are registered.
func NewImageCodec() *ImageCodec {
	RegisterDefaults()
	return &ImageCodec{MaxPixels: DefaultMaxPixels, Filter: imaging.Lanczos}
}

type imageSurface struct {
	img image.Image
}

func (s *imageSurface) Size() (int, int) {
	if s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *imageSurface) Release() { s.img = nil }

// Decode reads the header first so a hostile header cannot make us allocate
// an enormous buffer, then decodes applying the EXIF orientation.
func (c *ImageCodec) Decode(ctx context.Context, data []byte) (Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if c.MaxPixels > 0 && cfg.Width*cfg.Height > c.MaxPixels {
		return nil, fmt.Errorf("%w: %w (%dx%d)", ErrDecode, ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, _, err := imageorient.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty bounds", ErrDecode)
	}
	return &imageSurface{img: img}, nil
}

// Resize returns a new surface of exactly width x height.
func (c *ImageCodec) Resize(ctx context.Context, s Surface, width, height int) (Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, ok := s.(*imageSurface)
	if !ok || src.img == nil {
		return nil, ErrBadSurface
	}
	if w, h := src.Size(); w == width && h == height {
		return &imageSurface{img: src.img}, nil
	}
	return &imageSurface{img: imaging.Resize(src.img, width, height, c.Filter)}, nil
}

// Encode runs the registered encoder for format.
func (c *ImageCodec) Encode(ctx context.Context, s Surface, format string, quality float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, ok := s.(*imageSurface)
	if !ok || src.img == nil {
		return nil, ErrBadSurface
	}
	f, ok := Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	data, err := f.Encode(src.img, quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %s at q=%.2f: %v", ErrEncode, f.Name, quality, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s at q=%.2f produced no output", ErrEncode, f.Name, quality)
	}
	return data, nil
}
