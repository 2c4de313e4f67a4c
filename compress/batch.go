package compress

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"equipix/logger"
)

// DefaultMaxBatchItems is how many photos one equipment record may hold.
const DefaultMaxBatchItems = 10

// ErrBatchCountExceeded is the only pipeline error that reaches callers.
var ErrBatchCountExceeded = errors.New("compress: batch count exceeded")

// BatchCountError carries the numbers behind ErrBatchCountExceeded.
type BatchCountError struct {
	Existing int
	Incoming int
	Max      int
}

func (e *BatchCountError) Error() string {
	return fmt.Sprintf("compress: batch count exceeded: %d existing + %d incoming > %d allowed", e.Existing, e.Incoming, e.Max)
}

func (e *BatchCountError) Unwrap() error { return ErrBatchCountExceeded }

// BatchOptions bounds a batch run.
type BatchOptions struct {
	// MaxItems is the ceiling for existing + incoming items. Zero means
	// DefaultMaxBatchItems.
	MaxItems int `json:"max_items" mapstructure:"max_items"`
	// Workers caps concurrent pipelines. Zero means runtime.NumCPU().
	Workers int `json:"workers" mapstructure:"workers"`
}

// DefaultBatchOptions allows 10 items on NumCPU workers.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{MaxItems: DefaultMaxBatchItems, Workers: runtime.NumCPU()}
}

// BatchItem is the result for the source at position Index.
type BatchItem struct {
	Index  int     `json:"index"`
	Name   string  `json:"name"`
	Result *Result `json:"result"`
}

// BatchResult keeps one item per input, in input order.
type BatchResult struct {
	Items    []BatchItem `json:"items"`
	Degraded int         `json:"degraded"`
}

// Results returns the per-item results in input order.
func (b *BatchResult) Results() []*Result {
	out := make([]*Result, len(b.Items))
	for i, item := range b.Items {
		out[i] = item.Result
	}
	return out
}

// CheckBatchCount returns a *BatchCountError when existing + incoming would
// exceed max (DefaultMaxBatchItems when max <= 0).
func CheckBatchCount(existing, incoming, max int) error {
	if max <= 0 {
		max = DefaultMaxBatchItems
	}
	if existing < 0 {
		existing = 0
	}
	if existing+incoming > max {
		return &BatchCountError{Existing: existing, Incoming: incoming, Max: max}
	}
	return nil
}

// CompressBatch runs Compress on every source concurrently. existing is the
// number of photos the caller already holds; the ceiling check happens before
// any image is touched. Per-item problems never fail the batch, they show up
// as degraded results.
func (c *Compressor) CompressBatch(ctx context.Context, existing int, sources []SourceImage, opts BatchOptions) (*BatchResult, error) {
	if err := CheckBatchCount(existing, len(sources), opts.MaxItems); err != nil {
		logger.Warnf("rejecting batch: %v", err)
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	items := make([]BatchItem, len(sources))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			items[i] = BatchItem{Index: i, Name: src.Name, Result: c.Compress(ctx, src)}
			return nil
		})
	}
	// goroutines only ever return nil
	_ = g.Wait()

	out := &BatchResult{Items: items}
	for _, item := range items {
		if item.Result.Degraded {
			out.Degraded++
		}
	}
	if out.Degraded > 0 {
		logger.Warnf("batch of %d finished with %d degraded item(s)", len(items), out.Degraded)
	} else {
		logger.Infof("batch of %d finished, all within budget", len(items))
	}
	return out, nil
}
