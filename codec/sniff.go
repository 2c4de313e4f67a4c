package codec

import (
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// Sniff detects the real type of data from its magic bytes. ok is false when
// the type is unknown.
func Sniff(data []byte) (mime, ext string, ok bool) {
	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown {
		return "", "", false
	}
	return kind.MIME.Value, kind.Extension, true
}

// IsImage reports whether data starts with a known image signature.
func IsImage(data []byte) bool {
	return filetype.IsImage(data)
}
