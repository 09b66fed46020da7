package keyformat

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// BlockSize is the number of characters per display block
	BlockSize = 4
	// Separator joins display blocks (XXXX-XXXX-XXXX-XXXX)
	Separator = "-"
	// MinLength is the minimum number of alphanumeric characters a
	// well-formed key must carry after stripping separators
	MinLength = 12
)

// wellFormedRegex matches the canonical content of a valid key
var wellFormedRegex = regexp.MustCompile(fmt.Sprintf(`^[A-Z0-9]{%d,}$`, MinLength))

// Normalize converts raw user input into the canonical comparison form:
// uppercase ASCII alphanumeric with everything else stripped. Only ASCII
// letters and digits survive, so the result is always a subset of [A-Z0-9]
// and safe to chunk by byte. Empty input passes through unchanged;
// minimum-length checks are the caller's job.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Format produces the canonical display form: the normalized key re-chunked
// into blocks of 4 characters joined by "-". The last block may be short.
func Format(raw string) string {
	normalized := Normalize(raw)
	if normalized == "" {
		return normalized
	}
	blocks := make([]string, 0, (len(normalized)+BlockSize-1)/BlockSize)
	for i := 0; i < len(normalized); i += BlockSize {
		end := i + BlockSize
		if end > len(normalized) {
			end = len(normalized)
		}
		blocks = append(blocks, normalized[i:end])
	}
	return strings.Join(blocks, Separator)
}

// IsWellFormed reports whether input, after stripping separators, is a
// plausible key: uppercase letters and digits only, at least 12 characters.
// Rejecting malformed input here avoids a needless database lookup.
func IsWellFormed(raw string) bool {
	return wellFormedRegex.MatchString(Normalize(raw))
}
