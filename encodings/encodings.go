// Package encodings classifies glyph boundaries for the character encodings
// a PostgreSQL server may use on the wire.
//
// A COPY TO STDOUT text stream is a sequence of bytes in the server's
// negotiated encoding. Protocol-significant characters (tab, backslash,
// newline) are ASCII, and every supported server encoding guarantees that
// bytes below 0x80 only ever appear as complete single-byte characters.
// Continuation bytes of multi-byte characters, however, may collide with
// ASCII values in some legacy encodings, so a parser that scans byte by byte
// without knowing the encoding can split a character in half. This package
// answers the one question such a parser needs: given a buffer and the start
// of a character, where does that character end?
//
// The package never transcodes. It only walks byte grammars, and it reports
// a *DecodingError (with encoding name, offset, and the offending bytes)
// whenever a sequence is truncated or malformed.
package encodings

import (
	"errors"
	"fmt"
	"strings"
)

// Group identifies one family of byte grammars. PostgreSQL supports several
// dozen named server encodings, but for boundary scanning they collapse into
// these groups: every single-byte encoding behaves identically (Monobyte),
// and each multi-byte family has one grammar.
type Group int

const (
	// Monobyte covers every single-byte server encoding
	// (LATIN*, WIN125x, KOI8, SQL_ASCII, ...).
	Monobyte Group = iota
	Big5
	EUCCN
	EUCJP
	EUCJIS2004
	EUCKR
	EUCTW
	GB18030
	GBK
	Johab
	MuleInternal
	SJIS
	ShiftJIS2004
	UHC
	UTF8
)

// String returns the PostgreSQL-style name of the group.
func (g Group) String() string {
	switch g {
	case Monobyte:
		return "MONOBYTE"
	case Big5:
		return "BIG5"
	case EUCCN:
		return "EUC_CN"
	case EUCJP:
		return "EUC_JP"
	case EUCJIS2004:
		return "EUC_JIS_2004"
	case EUCKR:
		return "EUC_KR"
	case EUCTW:
		return "EUC_TW"
	case GB18030:
		return "GB18030"
	case GBK:
		return "GBK"
	case Johab:
		return "JOHAB"
	case MuleInternal:
		return "MULE_INTERNAL"
	case SJIS:
		return "SJIS"
	case ShiftJIS2004:
		return "SHIFT_JIS_2004"
	case UHC:
		return "UHC"
	case UTF8:
		return "UTF8"
	}
	return fmt.Sprintf("Group(%d)", int(g))
}

// EndOfBuffer is returned by NextGlyph, FindByte, and Find when scanning
// starts at (or reaches) the end of the buffer. It is a sentinel, not an
// error: an empty tail is a legal place for a scan to stop.
const EndOfBuffer = -1

// ErrUnknownGroup reports a Group value with no scanner behind it. Seeing it
// means a programming defect (an out-of-range constant), never bad data.
var ErrUnknownGroup = errors.New("encodings: unknown encoding group")

// DecodingError describes a malformed or truncated byte sequence. It carries
// enough context to point at the exact bytes in the input: the encoding name,
// the offset of the sequence start, and the bytes inspected so far.
type DecodingError struct {
	Encoding string
	Offset   int
	Bytes    []byte
}

func (e *DecodingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid byte sequence for encoding %s at byte %d:", e.Encoding, e.Offset)
	for _, c := range e.Bytes {
		fmt.Fprintf(&b, " 0x%02x", c)
	}
	return b.String()
}

// decodingErr builds a *DecodingError covering count bytes starting at start.
// count is clamped to the buffer so truncation errors can still show the
// bytes that are present.
func decodingErr(name string, buf []byte, start, count int) error {
	if start+count > len(buf) {
		count = len(buf) - start
	}
	return &DecodingError{
		Encoding: name,
		Offset:   start,
		Bytes:    append([]byte(nil), buf[start:start+count]...),
	}
}

// ScannerFunc reports the end (exclusive) of the glyph starting at start, or
// EndOfBuffer when start == len(buf), or a *DecodingError. Implementations
// never read past len(buf).
type ScannerFunc func(buf []byte, start int) (int, error)

// GlyphScanner returns the boundary scanner for g. The switch is exhaustive
// over the defined groups; any other value yields ErrUnknownGroup so that a
// corrupted tag surfaces at stream-open time instead of misparsing data.
func GlyphScanner(g Group) (ScannerFunc, error) {
	switch g {
	case Monobyte:
		return scanMonobyte, nil
	case Big5:
		return scanBig5, nil
	case EUCCN:
		return scanEUCCN, nil
	case EUCJP:
		return scanEUCJP, nil
	case EUCJIS2004:
		return scanEUCJIS2004, nil
	case EUCKR:
		return scanEUCKR, nil
	case EUCTW:
		return scanEUCTW, nil
	case GB18030:
		return scanGB18030, nil
	case GBK:
		return scanGBK, nil
	case Johab:
		return scanJohab, nil
	case MuleInternal:
		return scanMuleInternal, nil
	case SJIS:
		return scanSJIS, nil
	case ShiftJIS2004:
		return scanShiftJIS2004, nil
	case UHC:
		return scanUHC, nil
	case UTF8:
		return scanUTF8, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownGroup, int(g))
}

// NextGlyph is a one-shot dispatching form of GlyphScanner. Callers scanning
// in a loop should resolve the ScannerFunc once instead.
func NextGlyph(g Group, buf []byte, start int) (int, error) {
	scan, err := GlyphScanner(g)
	if err != nil {
		return 0, err
	}
	return scan(buf, start)
}

// groupNames maps every server encoding name PostgreSQL can report to its
// scanning group. Client-only encodings (SJIS, BIG5 as client encodings,
// etc.) are included because they share the same byte grammars.
var groupNames = map[string]Group{
	"BIG5":           Big5,
	"EUC_CN":         EUCCN,
	"EUC_JP":         EUCJP,
	"EUC_JIS_2004":   EUCJIS2004,
	"EUC_KR":         EUCKR,
	"EUC_TW":         EUCTW,
	"GB18030":        GB18030,
	"GBK":            GBK,
	"ISO_8859_5":     Monobyte,
	"ISO_8859_6":     Monobyte,
	"ISO_8859_7":     Monobyte,
	"ISO_8859_8":     Monobyte,
	"JOHAB":          Johab,
	"KOI8R":          Monobyte,
	"KOI8U":          Monobyte,
	"LATIN1":         Monobyte,
	"LATIN2":         Monobyte,
	"LATIN3":         Monobyte,
	"LATIN4":         Monobyte,
	"LATIN5":         Monobyte,
	"LATIN6":         Monobyte,
	"LATIN7":         Monobyte,
	"LATIN8":         Monobyte,
	"LATIN9":         Monobyte,
	"LATIN10":        Monobyte,
	"MULE_INTERNAL":  MuleInternal,
	"SJIS":           SJIS,
	"SHIFT_JIS_2004": ShiftJIS2004,
	"SQL_ASCII":      Monobyte,
	"UHC":            UHC,
	"UTF8":           UTF8,
	"WIN866":         Monobyte,
	"WIN874":         Monobyte,
	"WIN1250":        Monobyte,
	"WIN1251":        Monobyte,
	"WIN1252":        Monobyte,
	"WIN1253":        Monobyte,
	"WIN1254":        Monobyte,
	"WIN1255":        Monobyte,
	"WIN1256":        Monobyte,
	"WIN1257":        Monobyte,
	"WIN1258":        Monobyte,
}

// GroupFor resolves a server encoding name (as reported by the
// server_encoding parameter, e.g. "UTF8" or "LATIN1") to its scanning group.
// The name is matched case-insensitively. An unrecognized name is a
// configuration error and should abort stream construction.
func GroupFor(name string) (Group, error) {
	g, ok := groupNames[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("encodings: unrecognized encoding %q", name)
	}
	return g, nil
}
