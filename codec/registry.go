package codec

import (
	"image"
	"sort"
	"strings"
	"sync"

	"equipix/logger"
)

// EncodeFunc is the function signature for any encoder. quality is in [0,1].
type EncodeFunc func(img image.Image, quality float64) ([]byte, error)

// Format describes one target codec.
type Format struct {
	Name      string
	MIMEType  string
	Extension string
	Encode    EncodeFunc
}

var (
	// registry maps format name → Format
	registry   = map[string]Format{}
	registryMu sync.RWMutex
	defaults   sync.Once
)

// normalize folds aliases so "JPG" and "jpeg" resolve to the same entry.
func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "jpg" {
		return "jpeg"
	}
	return name
}

// Register adds or replaces a format
func Register(f Format) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[normalize(f.Name)] = f
	logger.Debugf("codec [%s] registered (%s)", f.Name, f.MIMEType)
}

// Get looks a format up by name
func Get(name string) (Format, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[normalize(name)]
	return f, ok
}

// Names returns the registered format names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterDefaults registers the built-in jpeg and webp encoders. Safe to call
// more than once.
func RegisterDefaults() {
	defaults.Do(func() {
		Register(Format{Name: "jpeg", MIMEType: "image/jpeg", Extension: "jpg", Encode: EncodeJPEG})
		Register(Format{Name: "webp", MIMEType: "image/webp", Extension: "webp", Encode: EncodeWebP})
	})
}

// percent maps a [0,1] quality onto [0,100].
func percent(quality float64) float64 {
	switch {
	case quality < 0:
		return 0
	case quality > 1:
		return 100
	}
	return quality * 100
}
