package compress

import (
	"context"

	"equipix/codec"
	"equipix/logger"
)

// Outcome is what happened to a single encode attempt.
type Outcome string

const (
	OutcomeFits         Outcome = "fits"
	OutcomeTooLarge     Outcome = "too_large"
	OutcomeEncodeFailed Outcome = "encode_failed"
)

// Attempt records one iteration of the quality search.
type Attempt struct {
	Index   int     `json:"index"`
	Quality float64 `json:"quality"`
	Size    int     `json:"size"`
	Outcome Outcome `json:"outcome"`
}

type searchResult struct {
	data     []byte
	quality  float64
	fits     bool
	attempts []Attempt
	// lastErr is the most recent encode error, nil if every attempt encoded.
	lastErr error
}

// searchQuality encodes s at InitialQuality and keeps stepping the quality
// down by QualityStep until the output fits MaxBytes. The loop is bounded by
// MaxAttempts no matter what the codec does.
//
// When no attempt fits, the smallest successful encoding is returned with
// fits=false (ties go to the later attempt). data is nil only when not a
// single attempt produced output.
func searchQuality(ctx context.Context, c codec.Codec, s codec.Surface, b Budget) searchResult {
	res := searchResult{attempts: make([]Attempt, 0, 4)}
	quality := b.InitialQuality

	var best []byte
	var bestQuality float64

	for i := 0; i < b.MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			res.lastErr = err
			break
		}

		data, err := c.Encode(ctx, s, b.TargetFormat, quality)
		if err == nil && len(data) == 0 {
			err = codec.ErrEncode
		}
		if err != nil {
			res.attempts = append(res.attempts, Attempt{Index: i, Quality: quality, Outcome: OutcomeEncodeFailed})
			res.lastErr = err
			logger.Debugf("attempt %d: encode at q=%.2f failed: %v", i, quality, err)
			if ctx.Err() != nil || quality <= b.MinQuality {
				break
			}
			quality = b.nextQuality(quality)
			continue
		}

		if len(data) <= b.MaxBytes {
			res.attempts = append(res.attempts, Attempt{Index: i, Quality: quality, Size: len(data), Outcome: OutcomeFits})
			res.data, res.quality, res.fits = data, quality, true
			return res
		}

		res.attempts = append(res.attempts, Attempt{Index: i, Quality: quality, Size: len(data), Outcome: OutcomeTooLarge})
		logger.Debugf("attempt %d: q=%.2f gave %d bytes, budget %d", i, quality, len(data), b.MaxBytes)
		if best == nil || len(data) <= len(best) {
			best, bestQuality = data, quality
		}
		if quality <= b.MinQuality {
			break
		}
		quality = b.nextQuality(quality)
	}

	res.data, res.quality = best, bestQuality
	return res
}
