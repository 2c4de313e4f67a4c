// Package compress shrinks photos to a byte budget and a bounding box before
// they are uploaded. It never fails per image: when nothing better can be
// produced the original bytes come back flagged as degraded.
package compress

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidBudget = errors.New("compress: invalid budget")

const (
	DefaultMaxBytes       = 800 * 1024
	DefaultMaxWidth       = 1280
	DefaultMaxHeight      = 720
	DefaultInitialQuality = 0.7
	DefaultQualityStep    = 0.1
	DefaultMinQuality     = 0.05
	DefaultMaxAttempts    = 20
	DefaultTargetFormat   = "webp"
)

// Budget bounds the output of one pipeline run. Qualities are in [0,1].
type Budget struct {
	MaxBytes       int     `json:"max_bytes" mapstructure:"max_bytes"`
	MaxWidth       int     `json:"max_width" mapstructure:"max_width"`
	MaxHeight      int     `json:"max_height" mapstructure:"max_height"`
	InitialQuality float64 `json:"initial_quality" mapstructure:"initial_quality"`
	QualityStep    float64 `json:"quality_step" mapstructure:"quality_step"`
	MinQuality     float64 `json:"min_quality" mapstructure:"min_quality"`
	MaxAttempts    int     `json:"max_attempts" mapstructure:"max_attempts"`
	TargetFormat   string  `json:"target_format" mapstructure:"target_format"`
}

// DefaultBudget returns 800 KiB, 1280x720, quality 0.7 stepping by 0.1 down
// to 0.05, at most 20 attempts, encoded as WebP.
func DefaultBudget() Budget {
	return Budget{
		MaxBytes:       DefaultMaxBytes,
		MaxWidth:       DefaultMaxWidth,
		MaxHeight:      DefaultMaxHeight,
		InitialQuality: DefaultInitialQuality,
		QualityStep:    DefaultQualityStep,
		MinQuality:     DefaultMinQuality,
		MaxAttempts:    DefaultMaxAttempts,
		TargetFormat:   DefaultTargetFormat,
	}
}

// Validate reports the first problem with b, wrapped in ErrInvalidBudget.
func (b Budget) Validate() error {
	switch {
	case b.MaxBytes <= 0:
		return fmt.Errorf("%w: max_bytes must be positive, got %d", ErrInvalidBudget, b.MaxBytes)
	case b.MaxWidth <= 0 || b.MaxHeight <= 0:
		return fmt.Errorf("%w: bounding box must be positive, got %dx%d", ErrInvalidBudget, b.MaxWidth, b.MaxHeight)
	case b.MinQuality < 0 || b.InitialQuality > 1 || b.MinQuality > b.InitialQuality:
		return fmt.Errorf("%w: need 0 <= min_quality (%.2f) <= initial_quality (%.2f) <= 1", ErrInvalidBudget, b.MinQuality, b.InitialQuality)
	case b.QualityStep <= 0 || math.IsNaN(b.QualityStep):
		return fmt.Errorf("%w: quality_step must be positive, got %v", ErrInvalidBudget, b.QualityStep)
	case b.MaxAttempts <= 0:
		return fmt.Errorf("%w: max_attempts must be positive, got %d", ErrInvalidBudget, b.MaxAttempts)
	case strings.TrimSpace(b.TargetFormat) == "":
		return fmt.Errorf("%w: target_format is required", ErrInvalidBudget)
	}
	return nil
}

// nextQuality steps q down linearly, never below MinQuality. Values are
// rounded to 1e-6 so repeated subtraction of 0.1 lands on 0.6, 0.5, ...
// unless the step is too small to survive the rounding.
func (b Budget) nextQuality(q float64) float64 {
	next := math.Round((q-b.QualityStep)*1e6) / 1e6
	if next >= q {
		next = q - b.QualityStep
	}
	if next < b.MinQuality {
		next = b.MinQuality
	}
	return next
}
