package imagefs

import (
	"fmt"
	"strconv"
	"strings"
)

// encodeField renders v as text, right-justified and space-padded (or cut
// down to its first MaxFieldWidth bytes) to exactly MaxFieldWidth bytes. This mirrors
// fs.py's format_data_write_file: every integer and every name on disk is a
// fixed-width ASCII field, never a packed binary value.
func encodeField(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > MaxFieldWidth {
		return s[:MaxFieldWidth]
	}
	if len(s) < MaxFieldWidth {
		return strings.Repeat(" ", MaxFieldWidth-len(s)) + s
	}
	return s
}

// encodeInt is encodeField specialized for integers, which is every numeric
// field in the image (superblock counters, nlink/size/nblock, block indices,
// descriptor indices).
func encodeInt(v int) string {
	return encodeField(strconv.Itoa(v))
}

// decodeField trims surrounding whitespace from a fixed-width field.
func decodeField(s string) string {
	return strings.TrimSpace(s)
}

// decodeInt parses a fixed-width field as a decimal integer. It never
// panics: an empty or non-numeric trimmed field (including the "-" free
// sentinel) yields ok=false, matching the spec's "decoding never raises"
// failure mode.
func decodeInt(s string) (int, bool) {
	t := decodeField(s)
	if t == "" || t == "-" {
		return 0, false
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0, false
	}
	return n, true
}

// encodeDescType renders the one-byte descriptor tag.
func encodeDescType(t DescType) byte {
	return byte(t)
}

// decodeDescType parses the one-byte descriptor tag, defaulting to
// TypeFree for anything unrecognized rather than raising.
func decodeDescType(b byte) DescType {
	t := DescType(b)
	if !t.valid() {
		return TypeFree
	}
	return t
}
