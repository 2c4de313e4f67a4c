package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/disintegration/imaging"
)

// EncodeJPEG encodes img as baseline JPEG. Transparent pixels are flattened
// onto white since JPEG has no alpha channel.
func EncodeJPEG(img image.Image, quality float64) ([]byte, error) {
	q := int(math.Round(percent(quality)))
	if q < 1 {
		// image/jpeg clamps anyway, keep it explicit
		q = 1
	}

	if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
		b := img.Bounds()
		bg := imaging.New(b.Dx(), b.Dy(), color.White)
		img = imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
