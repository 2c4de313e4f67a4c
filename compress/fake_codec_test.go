package compress

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"equipix/codec"
)

var errFakeEncode = errors.New("fake encode failure")

type fakeSurface struct {
	w, h     int
	released *atomic.Int32
	once     sync.Once
}

func (s *fakeSurface) Size() (int, int) { return s.w, s.h }

func (s *fakeSurface) Release() { s.once.Do(func() { s.released.Add(1) }) }

// fakeCodec decodes anything except empty input or input starting with
// "corrupt" into a width x height surface. Encoded size is decided by sizeAt.
type fakeCodec struct {
	width, height int
	sizeAt        func(q float64) int
	failAt        func(q float64) bool
	panicOnEncode bool
	resizeErr     error
	// onEncode runs once an Encode call has produced its output.
	onEncode func()

	mu        sync.Mutex
	decodes   int
	qualities []float64
	resizedTo [][2]int

	created  atomic.Int32
	released atomic.Int32
}

func newFakeCodec(w, h int, sizeAt func(q float64) int) *fakeCodec {
	return &fakeCodec{width: w, height: h, sizeAt: sizeAt}
}

func (f *fakeCodec) surface(w, h int) *fakeSurface {
	f.created.Add(1)
	return &fakeSurface{w: w, h: h, released: &f.released}
}

func (f *fakeCodec) Decode(ctx context.Context, data []byte) (codec.Surface, error) {
	f.mu.Lock()
	f.decodes++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 || bytes.HasPrefix(data, []byte("corrupt")) {
		return nil, codec.ErrDecode
	}
	return f.surface(f.width, f.height), nil
}

func (f *fakeCodec) Resize(ctx context.Context, s codec.Surface, width, height int) (codec.Surface, error) {
	if f.resizeErr != nil {
		return nil, f.resizeErr
	}
	f.mu.Lock()
	f.resizedTo = append(f.resizedTo, [2]int{width, height})
	f.mu.Unlock()
	return f.surface(width, height), nil
}

func (f *fakeCodec) Encode(ctx context.Context, s codec.Surface, format string, quality float64) ([]byte, error) {
	f.mu.Lock()
	f.qualities = append(f.qualities, quality)
	f.mu.Unlock()
	if f.panicOnEncode {
		panic("encoder blew up")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failAt != nil && f.failAt(quality) {
		return nil, errFakeEncode
	}
	if f.onEncode != nil {
		f.onEncode()
	}
	return bytes.Repeat([]byte{'x'}, f.sizeAt(quality)), nil
}

func (f *fakeCodec) decodeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decodes
}

func (f *fakeCodec) encodedQualities() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.qualities...)
}

// linearSize makes the encoded size proportional to quality.
func linearSize(perUnit int) func(q float64) int {
	return func(q float64) int { return int(q * float64(perUnit)) }
}

func constSize(n int) func(q float64) int {
	return func(float64) int { return n }
}
