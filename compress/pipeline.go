package compress

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"equipix/codec"
	"equipix/logger"
	"equipix/utils"
)

// Reason explains why a result is degraded. It is empty for results that met
// the budget.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonDecodeFailed Reason = "decode_failed"
	ReasonEncodeFailed Reason = "encode_failed"
	ReasonOverBudget   Reason = "over_budget"
	ReasonCancelled    Reason = "cancelled"
	ReasonPanic        Reason = "codec_panic"
)

// SourceImage is one photo as handed over by the caller.
type SourceImage struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Result is the single output of a pipeline run.
//
// Degraded is true whenever the byte or dimension guarantees were not met.
// Two flavours exist: with Fallback set, Data is the untouched input and may
// be arbitrarily large (decode failure, no successful encode, cancellation);
// without it, Data is the smallest encoding found but still exceeds the byte
// budget (Reason over_budget).
type Result struct {
	Data         []byte    `json:"-"`
	Format       string    `json:"format"`
	MIMEType     string    `json:"mime_type"`
	Filename     string    `json:"filename"`
	Size         int       `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SourceWidth  int       `json:"source_width"`
	SourceHeight int       `json:"source_height"`
	SourceSize   int       `json:"source_size"`
	Quality      float64   `json:"quality"`
	Degraded     bool      `json:"degraded"`
	Fallback     bool      `json:"fallback"`
	Reason       Reason    `json:"reason,omitempty"`
	Attempts     []Attempt `json:"attempts"`
	// Cause is the absorbed codec error behind a fallback, if any.
	Cause error `json:"-"`
}

// AttemptCount is the number of encode attempts consumed.
func (r *Result) AttemptCount() int { return len(r.Attempts) }

// Observer is called once per finished pipeline run.
type Observer func(src SourceImage, res *Result)

// Compressor runs the single-image and batch pipelines against a Codec.
// It holds no mutable state besides the filename stamper, so one instance is
// safe for concurrent use.
type Compressor struct {
	codec    codec.Codec
	budget   Budget
	format   codec.Format
	stamper  *utils.Stamper
	observer Observer
}

type Option func(*Compressor)

// WithClock replaces time.Now for filename stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Compressor) { c.stamper = utils.NewStamper(now) }
}

// WithObserver registers fn to be called with every result.
func WithObserver(fn Observer) Option {
	return func(c *Compressor) { c.observer = fn }
}

// NewCompressor validates the budget and resolves its target format.
func NewCompressor(c codec.Codec, b Budget, opts ...Option) (*Compressor, error) {
	if c == nil {
		return nil, errors.New("compress: nil codec")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	codec.RegisterDefaults()
	f, ok := codec.Get(b.TargetFormat)
	if !ok {
		return nil, fmt.Errorf("%w: unknown target_format %q (have %v)", ErrInvalidBudget, b.TargetFormat, codec.Names())
	}

	cmp := &Compressor{codec: c, budget: b, format: f, stamper: utils.NewStamper(nil)}
	for _, opt := range opts {
		opt(cmp)
	}
	return cmp, nil
}

// Budget returns a copy of the compressor's budget.
func (c *Compressor) Budget() Budget { return c.budget }

// Compress runs decode → resize → quality search for one image. It always
// returns a result; see Result for what Degraded means.
func (c *Compressor) Compress(ctx context.Context, src SourceImage) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("codec panicked on %q: %v", src.Name, r)
			res = c.fallback(src, ReasonPanic, nil, fmt.Errorf("codec panic: %v", r))
		}
		if c.observer != nil {
			c.observer(src, res)
		}
	}()

	surface, err := c.codec.Decode(ctx, src.Data)
	if err != nil {
		logger.Warnf("cannot decode %q (%s), keeping original bytes: %v", src.Name, humanize.Bytes(uint64(len(src.Data))), err)
		return c.fallback(src, failureReason(ctx, ReasonDecodeFailed), nil, err)
	}
	defer surface.Release()

	sw, sh := surface.Size()
	tw, th := FitDimensions(sw, sh, c.budget.MaxWidth, c.budget.MaxHeight)

	resized, err := c.codec.Resize(ctx, surface, tw, th)
	if err != nil {
		logger.Warnf("cannot resize %q to %dx%d, keeping original bytes: %v", src.Name, tw, th, err)
		res = c.fallback(src, failureReason(ctx, ReasonDecodeFailed), nil, err)
		res.SourceWidth, res.SourceHeight = sw, sh
		return res
	}
	defer resized.Release()

	search := searchQuality(ctx, c.codec, resized, c.budget)
	if err := ctx.Err(); err != nil && !search.fits {
		logger.Warnf("compression of %q cancelled after %d attempts, keeping original bytes", src.Name, len(search.attempts))
		res = c.fallback(src, ReasonCancelled, search.attempts, err)
		res.SourceWidth, res.SourceHeight = sw, sh
		return res
	}
	if search.data == nil {
		logger.Warnf("no encoding of %q after %d attempts, keeping original bytes", src.Name, len(search.attempts))
		res = c.fallback(src, failureReason(ctx, ReasonEncodeFailed), search.attempts, search.lastErr)
		res.SourceWidth, res.SourceHeight = sw, sh
		return res
	}

	ow, oh := resized.Size()
	res = &Result{
		Data:         search.data,
		Format:       c.format.Name,
		MIMEType:     c.format.MIMEType,
		Filename:     utils.OutputFilename(src.Name, c.stamper.Next(), c.format.Extension),
		Size:         len(search.data),
		Width:        ow,
		Height:       oh,
		SourceWidth:  sw,
		SourceHeight: sh,
		SourceSize:   len(src.Data),
		Quality:      search.quality,
		Attempts:     search.attempts,
	}
	if !search.fits {
		res.Degraded, res.Reason = true, ReasonOverBudget
		logger.Warnf("%q still %s after %d attempts (budget %s), using smallest encoding",
			src.Name, humanize.Bytes(uint64(res.Size)), res.AttemptCount(), humanize.Bytes(uint64(c.budget.MaxBytes)))
		return res
	}

	logger.Debugf("compressed %q: %s %dx%d -> %s %dx%d at q=%.2f in %d attempts",
		src.Name, humanize.Bytes(uint64(len(src.Data))), sw, sh,
		humanize.Bytes(uint64(res.Size)), ow, oh, res.Quality, res.AttemptCount())
	return res
}

// fallback returns the input bytes untouched, named after their real format.
func (c *Compressor) fallback(src SourceImage, reason Reason, attempts []Attempt, cause error) *Result {
	mime, ext, ok := codec.Sniff(src.Data)
	if !ok {
		mime = src.MIMEType
		ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(src.Name), "."))
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return &Result{
		Data:       src.Data,
		Format:     ext,
		MIMEType:   mime,
		Filename:   utils.OutputFilename(src.Name, c.stamper.Next(), ext),
		Size:       len(src.Data),
		SourceSize: len(src.Data),
		Degraded:   true,
		Fallback:   true,
		Reason:     reason,
		Attempts:   attempts,
		Cause:      cause,
	}
}

func failureReason(ctx context.Context, otherwise Reason) Reason {
	if ctx.Err() != nil {
		return ReasonCancelled
	}
	return otherwise
}
