package encodings

import "bytes"

// find.go provides encoding-aware search. A naive bytes.IndexByte can land
// inside a multi-byte character in the legacy CJK encodings, so these
// variants only test positions that fall on glyph boundaries.

// FindByte returns the offset of the first occurrence of needle in haystack
// at or after start that begins a glyph, or EndOfBuffer if there is none.
// A malformed sequence encountered while walking surfaces as a
// *DecodingError.
func FindByte(g Group, haystack []byte, needle byte, start int) (int, error) {
	scan, err := GlyphScanner(g)
	if err != nil {
		return 0, err
	}
	for here := start; here < len(haystack); {
		if haystack[here] == needle {
			return here, nil
		}
		next, err := scan(haystack, here)
		if err != nil {
			return 0, err
		}
		here = next
	}
	return EndOfBuffer, nil
}

// Find returns the offset of the first occurrence of needle in haystack at
// or after start that begins on a glyph boundary, or EndOfBuffer if there is
// none. An empty needle matches at start.
func Find(g Group, haystack, needle []byte, start int) (int, error) {
	scan, err := GlyphScanner(g)
	if err != nil {
		return 0, err
	}
	if start <= len(haystack) && len(needle) == 0 {
		return start, nil
	}
	for here := start; here < len(haystack); {
		if bytes.HasPrefix(haystack[here:], needle) {
			return here, nil
		}
		next, err := scan(haystack, here)
		if err != nil {
			return 0, err
		}
		here = next
	}
	return EndOfBuffer, nil
}
