package utils

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

// fallbackBaseName is used when nothing survives sanitization.
const fallbackBaseName = "image"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitizeBaseName drops any directory part and the last extension of name,
// then replaces every character outside [A-Za-z0-9_] with an underscore.
func SanitizeBaseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	name = unsafeNameChars.ReplaceAllString(name, "_")
	if name == "" {
		return fallbackBaseName
	}
	return name
}

// OutputFilename builds "<sanitized>_<stamp>.<ext>".
func OutputFilename(original string, stamp int64, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return fmt.Sprintf("%s_%d", SanitizeBaseName(original), stamp)
	}
	return fmt.Sprintf("%s_%d.%s", SanitizeBaseName(original), stamp, ext)
}

// Stamper hands out millisecond timestamps that strictly increase, even when
// several goroutines ask within the same millisecond.
type Stamper struct {
	last atomic.Int64
	now  func() time.Time
}

// NewStamper returns a Stamper reading from now, or time.Now when nil.
func NewStamper(now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{now: now}
}

// Next returns max(now in ms, previous + 1).
func (s *Stamper) Next() int64 {
	for {
		ts := s.now().UnixMilli()
		last := s.last.Load()
		if ts <= last {
			ts = last + 1
		}
		if s.last.CompareAndSwap(last, ts) {
			return ts
		}
	}
}
