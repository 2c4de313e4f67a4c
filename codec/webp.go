package codec

import (
	"bytes"
	"image"

	"github.com/chai2010/webp"
)

// EncodeWebP encodes img as lossy WebP.
func EncodeWebP(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(percent(quality))}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
