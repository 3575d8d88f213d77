package encodings

// scanners.go implements one boundary scanner per encoding group.
//
// Each scanner follows the same contract (see ScannerFunc): bytes below 0x80
// are complete single-byte glyphs in every group, lead bytes select the
// sequence length, and every trailing byte is range-checked. A lead byte
// whose sequence runs past the end of the buffer is an error, not a partial
// success — the row decoder feeds whole lines, so a truncated sequence means
// the data itself is damaged.
//
// The byte ranges come from the encoding standards referenced per function.
// Errors name the encoding and cover the bytes inspected so far.

// between reports lo <= b <= hi.
func between(b, lo, hi byte) bool {
	return b >= lo && b <= hi
}

func scanMonobyte(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	return start + 1, nil
}

// https://en.wikipedia.org/wiki/Big5#Organization
func scanBig5(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 {
		return start + 1, nil
	}
	if !between(first, 0x81, 0xfe) || start+2 > len(buf) {
		return 0, decodingErr("BIG5", buf, start, 1)
	}
	second := buf[start+1]
	if !between(second, 0x40, 0x7e) && !between(second, 0xa1, 0xfe) {
		return 0, decodingErr("BIG5", buf, start, 2)
	}
	return start + 2, nil
}

// EUC-CN is the EUC form of GB 2312: lead and trail both 0xA1-0xFE.
// https://en.wikipedia.org/wiki/GB_2312#EUC-CN
func scanEUCCN(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 {
		return start + 1, nil
	}
	if !between(first, 0xa1, 0xf7) || start+2 > len(buf) {
		return 0, decodingErr("EUC_CN", buf, start, 1)
	}
	if !between(buf[start+1], 0xa1, 0xfe) {
		return 0, decodingErr("EUC_CN", buf, start, 2)
	}
	return start + 2, nil
}

// EUC-JP and EUC-JIS-2004 map to different code points but share the same
// byte iteration: code set 1 is two bytes 0xA1-0xFE, SS2 (0x8E) introduces a
// two-byte half-width kana, SS3 (0x8F) a three-byte extension character.
// https://en.wikipedia.org/wiki/Extended_Unix_Code#EUC-JP
func scanEUCJPLike(buf []byte, start int, name string) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 {
		return start + 1, nil
	}
	if start+2 > len(buf) {
		return 0, decodingErr(name, buf, start, 1)
	}
	second := buf[start+1]
	if first == 0x8e {
		if !between(second, 0xa1, 0xfe) {
			return 0, decodingErr(name, buf, start, 2)
		}
		return start + 2, nil
	}
	if between(first, 0xa1, 0xfe) {
		if !between(second, 0xa1, 0xfe) {
			return 0, decodingErr(name, buf, start, 2)
		}
		return start + 2, nil
	}
	if first == 0x8f {
		if start+3 > len(buf) {
			return 0, decodingErr(name, buf, start, 2)
		}
		if !between(second, 0xa1, 0xfe) || !between(buf[start+2], 0xa1, 0xfe) {
			return 0, decodingErr(name, buf, start, 3)
		}
		return start + 3, nil
	}
	return 0, decodingErr(name, buf, start, 1)
}

func scanEUCJP(buf []byte, start int) (int, error) {
	return scanEUCJPLike(buf, start, "EUC_JP")
}

func scanEUCJIS2004(buf []byte, start int) (int, error) {
	return scanEUCJPLike(buf, start, "EUC_JIS_2004")
}

// https://en.wikipedia.org/wiki/Extended_Unix_Code#EUC-KR
func scanEUCKR(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 {
		return start + 1, nil
	}
	if !between(first, 0xa1, 0xfe) || start+2 > len(buf) {
		return 0, decodingErr("EUC_KR", buf, start, 1)
	}
	if !between(buf[start+1], 0xa1, 0xfe) {
		return 0, decodingErr("EUC_KR", buf, start, 2)
	}
	return start + 2, nil
}

// EUC-TW: code set 1 is two bytes 0xA1-0xFE; SS2 (0x8E) introduces a
// four-byte sequence selecting one of CNS 11643 planes 1-16.
// https://en.wikipedia.org/wiki/Extended_Unix_Code#EUC-TW
func scanEUCTW(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 {
		return start + 1, nil
	}
	if start+2 > len(buf) {
		return 0, decodingErr("EUC_TW", buf, start, 1)
	}
	second := buf[start+1]
	if between(first, 0xa1, 0xfe) {
		if !between(second, 0xa1, 0xfe) {
			return 0, decodingErr("EUC_TW", buf, start, 2)
		}
		return start + 2, nil
	}
	if first != 0x8e || start+4 > len(buf) {
		return 0, decodingErr("EUC_TW", buf, start, 1)
	}
	if between(second, 0xa1, 0xb0) &&
		between(buf[start+2], 0xa1, 0xfe) &&
		between(buf[start+3], 0xa1, 0xfe) {
		return start + 4, nil
	}
	return 0, decodingErr("EUC_TW", buf, start, 4)
}

// GB18030 is a superset of GBK with an additional four-byte form:
// lead 0x81-0xFE, then either one byte 0x40-0xFE (except 0x7F), or the
// four-byte form digit/lead/digit. Bytes outside the lead range (ASCII,
// 0x80, 0xFF) are single-byte.
// https://en.wikipedia.org/wiki/GB_18030#Mapping
func scanGB18030(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if !between(first, 0x81, 0xfe) {
		return start + 1, nil
	}
	if start+2 > len(buf) {
		return 0, decodingErr("GB18030", buf, start, len(buf)-start)
	}
	second := buf[start+1]
	if between(second, 0x40, 0xfe) {
		if second == 0x7f {
			return 0, decodingErr("GB18030", buf, start, 2)
		}
		return start + 2, nil
	}
	if start+4 > len(buf) {
		return 0, decodingErr("GB18030", buf, start, len(buf)-start)
	}
	if between(second, 0x30, 0x39) &&
		between(buf[start+2], 0x81, 0xfe) &&
		between(buf[start+3], 0x30, 0x39) {
		return start + 4, nil
	}
	return 0, decodingErr("GB18030", buf, start, 4)
}

// https://en.wikipedia.org/wiki/GBK_(character_encoding)#Encoding
func scanGBK(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 {
		return start + 1, nil
	}
	if start+2 > len(buf) {
		return 0, decodingErr("GBK", buf, start, 1)
	}
	second := buf[start+1]
	switch {
	case between(first, 0xa1, 0xa9) && between(second, 0xa1, 0xfe),
		between(first, 0xb0, 0xf7) && between(second, 0xa1, 0xfe),
		between(first, 0x81, 0xa0) && between(second, 0x40, 0xfe) && second != 0x7f,
		between(first, 0xaa, 0xfe) && between(second, 0x40, 0xa0) && second != 0x7f,
		between(first, 0xa8, 0xa9) && between(second, 0x40, 0xa0) && second != 0x7f,
		between(first, 0xaa, 0xaf) && between(second, 0xa1, 0xfe),
		between(first, 0xf8, 0xfe) && between(second, 0xa1, 0xfe),
		between(first, 0xa1, 0xa7) && between(second, 0x40, 0xa0) && second != 0x7f:
		return start + 2, nil
	}
	return 0, decodingErr("GBK", buf, start, 2)
}

// Johab packs a Hangul syllable's three five-bit jamo segments into 16 bits.
// Lead 0x84-0xD3 carries trail 0x41-0x7E or 0x81-0xFE; the symbol and
// hanja leads 0xD8-0xDE and 0xE0-0xF9 carry trail 0x31-0x7E or 0x91-0xFE.
// CJKV Information Processing, Ken Lunde, p. 269.
func scanJohab(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 {
		return start + 1, nil
	}
	if start+2 > len(buf) {
		return 0, decodingErr("JOHAB", buf, start, 1)
	}
	second := buf[start+1]
	if between(first, 0x84, 0xd3) &&
		(between(second, 0x41, 0x7e) || between(second, 0x81, 0xfe)) {
		return start + 2, nil
	}
	if (between(first, 0xd8, 0xde) || between(first, 0xe0, 0xf9)) &&
		(between(second, 0x31, 0x7e) || between(second, 0x91, 0xfe)) {
		return start + 2, nil
	}
	return 0, decodingErr("JOHAB", buf, start, 2)
}

// MULE_INTERNAL is emacs's internal multi-byte encoding as PostgreSQL
// implements it (see the server's pg_wchar.h): a leading-character byte
// selects a one-, two-, or three-byte code position, with the private
// prefixes 0x9A-0x9D extending to three- and four-byte forms. All position
// bytes are >= 0xA0.
func scanMuleInternal(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 {
		return start + 1, nil
	}
	if start+2 > len(buf) {
		return 0, decodingErr("MULE_INTERNAL", buf, start, 1)
	}
	second := buf[start+1]
	if between(first, 0x81, 0x8d) && second >= 0xa0 {
		return start + 2, nil
	}
	if start+3 > len(buf) {
		return 0, decodingErr("MULE_INTERNAL", buf, start, 2)
	}
	third := buf[start+2]
	if ((first == 0x9a && between(second, 0xa0, 0xdf)) ||
		(first == 0x9b && between(second, 0xe0, 0xef)) ||
		(between(first, 0x90, 0x99) && second >= 0xa0)) &&
		third >= 0xa0 {
		return start + 3, nil
	}
	if start+4 > len(buf) {
		return 0, decodingErr("MULE_INTERNAL", buf, start, 3)
	}
	if ((first == 0x9c && between(second, 0xf0, 0xf4)) ||
		(first == 0x9d && between(second, 0xf5, 0xfe))) &&
		third >= 0xa0 && buf[start+3] >= 0xa0 {
		return start + 4, nil
	}
	return 0, decodingErr("MULE_INTERNAL", buf, start, 4)
}

// Shift JIS and Shift_JIS-2004 iterate identically for our purposes:
// single-byte half-width kana at 0xA1-0xDF, two-byte sequences with lead
// 0x81-0x9F or 0xE0-0xFC and trail 0x40-0xFC excluding 0x7F. PostgreSQL's
// SJIS already accepts the extended 2004 lead range.
// https://en.wikipedia.org/wiki/Shift_JIS#Shift_JIS_byte_map
func scanSJISLike(buf []byte, start int, name string) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 || between(first, 0xa1, 0xdf) {
		return start + 1, nil
	}
	if !between(first, 0x81, 0x9f) && !between(first, 0xe0, 0xfc) {
		return 0, decodingErr(name, buf, start, 1)
	}
	if start+2 > len(buf) {
		return 0, decodingErr(name, buf, start, len(buf)-start)
	}
	second := buf[start+1]
	if second == 0x7f || !between(second, 0x40, 0xfc) {
		return 0, decodingErr(name, buf, start, 2)
	}
	return start + 2, nil
}

func scanSJIS(buf []byte, start int) (int, error) {
	return scanSJISLike(buf, start, "SJIS")
}

func scanShiftJIS2004(buf []byte, start int) (int, error) {
	return scanSJISLike(buf, start, "SHIFT_JIS_2004")
}

// UHC (Windows code page 949) extends EUC-KR with additional two-byte
// sequences whose leads reach down to 0x80 and whose trails include ASCII
// letter ranges.
// https://en.wikipedia.org/wiki/Unified_Hangul_Code
func scanUHC(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 {
		return start + 1, nil
	}
	if start+2 > len(buf) {
		return 0, decodingErr("UHC", buf, start, len(buf)-start)
	}
	second := buf[start+1]
	if between(first, 0x80, 0xc6) {
		if between(second, 0x41, 0x5a) ||
			between(second, 0x61, 0x7a) ||
			between(second, 0x80, 0xfe) {
			return start + 2, nil
		}
		return 0, decodingErr("UHC", buf, start, 2)
	}
	if between(first, 0xa1, 0xfe) {
		if !between(second, 0xa1, 0xfe) {
			return 0, decodingErr("UHC", buf, start, 2)
		}
		return start + 2, nil
	}
	return 0, decodingErr("UHC", buf, start, 1)
}

// https://en.wikipedia.org/wiki/UTF-8#Description
func scanUTF8(buf []byte, start int) (int, error) {
	if start >= len(buf) {
		return EndOfBuffer, nil
	}
	first := buf[start]
	if first < 0x80 {
		return start + 1, nil
	}
	if start+2 > len(buf) {
		return 0, decodingErr("UTF8", buf, start, len(buf)-start)
	}
	second := buf[start+1]
	if between(first, 0xc0, 0xdf) {
		if !between(second, 0x80, 0xbf) {
			return 0, decodingErr("UTF8", buf, start, 2)
		}
		return start + 2, nil
	}
	if start+3 > len(buf) {
		return 0, decodingErr("UTF8", buf, start, len(buf)-start)
	}
	third := buf[start+2]
	if between(first, 0xe0, 0xef) {
		if between(second, 0x80, 0xbf) && between(third, 0x80, 0xbf) {
			return start + 3, nil
		}
		return 0, decodingErr("UTF8", buf, start, 3)
	}
	if start+4 > len(buf) {
		return 0, decodingErr("UTF8", buf, start, len(buf)-start)
	}
	if between(first, 0xf0, 0xf7) {
		if between(second, 0x80, 0xbf) && between(third, 0x80, 0xbf) &&
			between(buf[start+3], 0x80, 0xbf) {
			return start + 4, nil
		}
		return 0, decodingErr("UTF8", buf, start, 4)
	}
	return 0, decodingErr("UTF8", buf, start, 1)
}
