// Package codec decodes, resizes and re-encodes images for the compression
// pipeline. The pipeline only talks to the Codec interface; ImageCodec is the
// pure-Go implementation used by the server and the CLI.
package codec

import (
	"context"
	"errors"
)

var (
	ErrDecode        = errors.New("codec: cannot decode image")
	ErrEncode        = errors.New("codec: cannot encode image")
	ErrUnknownFormat = errors.New("codec: unknown target format")
	ErrTooManyPixels = errors.New("codec: image exceeds pixel limit")
	ErrBadSurface    = errors.New("codec: surface was not produced by this codec")
)

// Surface is a decoded pixel buffer. It belongs to exactly one pipeline run,
// which must call Release once it is done with it.
type Surface interface {
	Size() (width, height int)
	Release()
}

// Codec is everything the compression pipeline needs from an image library.
// Every method may return ctx.Err() if the context is already done.
type Codec interface {
	Decode(ctx context.Context, data []byte) (Surface, error)
	Resize(ctx context.Context, s Surface, width, height int) (Surface, error)
	// Encode returns the surface encoded as format at quality in [0,1].
	// An empty result is reported as ErrEncode.
	Encode(ctx context.Context, s Surface, format string, quality float64) ([]byte, error)
}
