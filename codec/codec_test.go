package codec

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"
)

func noisyImage(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(x), B: uint8(y), A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestRegistryDefaults(t *testing.T) {
	RegisterDefaults()

	f, ok := Get("JPG")
	if !ok {
		t.Fatal("expected jpg alias to resolve")
	}
	if f.Name != "jpeg" || f.MIMEType != "image/jpeg" || f.Extension != "jpg" {
		t.Errorf("unexpected jpeg format %+v", f)
	}

	f, ok = Get("webp")
	if !ok || f.MIMEType != "image/webp" {
		t.Errorf("expected webp to be registered, got %+v", f)
	}

	if _, ok := Get("avif"); ok {
		t.Error("avif should not be registered")
	}

	names := Names()
	if len(names) < 2 {
		t.Errorf("expected at least jpeg and webp, got %v", names)
	}
}

func TestImageCodecRoundTrip(t *testing.T) {
	c := NewImageCodec()
	ctx := context.Background()

	s, err := c.Decode(ctx, pngBytes(t, noisyImage(200, 100)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	defer s.Release()
	if w, h := s.Size(); w != 200 || h != 100 {
		t.Fatalf("decoded size %dx%d, want 200x100", w, h)
	}

	r, err := c.Resize(ctx, s, 100, 50)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	defer r.Release()

	data, err := c.Encode(ctx, r, "jpeg", 0.7)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("encoded %dx%d, want 100x50", cfg.Width, cfg.Height)
	}
}

func TestImageCodecLowerQualityIsSmaller(t *testing.T) {
	c := NewImageCodec()
	ctx := context.Background()

	s, err := c.Decode(ctx, pngBytes(t, noisyImage(256, 256)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	defer s.Release()

	high, err := c.Encode(ctx, s, "jpeg", 0.9)
	if err != nil {
		t.Fatalf("Encode high: %v", err)
	}
	low, err := c.Encode(ctx, s, "jpeg", 0.1)
	if err != nil {
		t.Fatalf("Encode low: %v", err)
	}
	if len(low) >= len(high) {
		t.Errorf("expected q=0.1 (%d bytes) to be smaller than q=0.9 (%d bytes)", len(low), len(high))
	}
}

func TestImageCodecDecodeErrors(t *testing.T) {
	c := NewImageCodec()

	if _, err := c.Decode(context.Background(), nil); !errors.Is(err, ErrDecode) {
		t.Errorf("empty input: expected ErrDecode, got %v", err)
	}
	if _, err := c.Decode(context.Background(), []byte("definitely not an image")); !errors.Is(err, ErrDecode) {
		t.Errorf("garbage input: expected ErrDecode, got %v", err)
	}

	small := &ImageCodec{MaxPixels: 100}
	_, err := small.Decode(context.Background(), pngBytes(t, noisyImage(20, 20)))
	if !errors.Is(err, ErrTooManyPixels) || !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrTooManyPixels wrapped in ErrDecode, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Decode(ctx, pngBytes(t, noisyImage(4, 4))); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestImageCodecReleasedSurface(t *testing.T) {
	c := NewImageCodec()
	s, err := c.Decode(context.Background(), pngBytes(t, noisyImage(8, 8)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s.Release()
	s.Release() // twice is fine

	if _, err := c.Encode(context.Background(), s, "jpeg", 0.5); !errors.Is(err, ErrBadSurface) {
		t.Errorf("expected ErrBadSurface, got %v", err)
	}
	if _, err := c.Encode(context.Background(), nil, "jpeg", 0.5); !errors.Is(err, ErrBadSurface) {
		t.Errorf("nil surface: expected ErrBadSurface, got %v", err)
	}
}

func TestImageCodecUnknownFormat(t *testing.T) {
	c := NewImageCodec()
	s, err := c.Decode(context.Background(), pngBytes(t, noisyImage(8, 8)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	defer s.Release()

	if _, err := c.Encode(context.Background(), s, "bmp", 0.5); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestEncodeJPEGFlattensTransparency(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16)) // fully transparent

	data, err := EncodeJPEG(img, 0.9)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	out, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := out.At(8, 8).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("expected white background, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestEncodeWebP(t *testing.T) {
	data, err := EncodeWebP(noisyImage(64, 64), 0.5)
	if err != nil {
		t.Fatalf("EncodeWebP: %v", err)
	}
	mime, ext, ok := Sniff(data)
	if !ok || mime != "image/webp" || ext != "webp" {
		t.Errorf("expected webp output, sniffed %q %q %v", mime, ext, ok)
	}
}

func TestSniff(t *testing.T) {
	mime, ext, ok := Sniff(pngBytes(t, noisyImage(2, 2)))
	if !ok || mime != "image/png" || ext != "png" {
		t.Errorf("expected png, got %q %q %v", mime, ext, ok)
	}
	if !IsImage(pngBytes(t, noisyImage(2, 2))) {
		t.Error("expected png to be recognised as an image")
	}
	if _, _, ok := Sniff([]byte("plain text")); ok {
		t.Error("expected plain text to be unknown")
	}
	if _, _, ok := Sniff(nil); ok {
		t.Error("expected empty input to be unknown")
	}
}
