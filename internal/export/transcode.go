package export

// transcode.go maps PostgreSQL server encoding names to golang.org/x/text
// decoders so exported values can be delivered as UTF-8. The pgcopy core
// deliberately never transcodes (it only finds character boundaries); the
// conversion belongs here, at the edge where JSON output requires UTF-8.

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// utf8Decoders maps server encoding names to source encodings. Absent names
// either already are UTF-8 (UTF8, SQL_ASCII) or have no x/text support
// (EUC_TW, JOHAB, MULE_INTERNAL); their bytes pass through unchanged.
var utf8Decoders = map[string]encoding.Encoding{
	"LATIN1":  charmap.ISO8859_1,
	"LATIN2":  charmap.ISO8859_2,
	"LATIN3":  charmap.ISO8859_3,
	"LATIN4":  charmap.ISO8859_4,
	"LATIN5":  charmap.ISO8859_9,
	"LATIN6":  charmap.ISO8859_10,
	"LATIN7":  charmap.ISO8859_13,
	"LATIN8":  charmap.ISO8859_14,
	"LATIN9":  charmap.ISO8859_15,
	"LATIN10": charmap.ISO8859_16,

	"ISO_8859_5": charmap.ISO8859_5,
	"ISO_8859_6": charmap.ISO8859_6,
	"ISO_8859_7": charmap.ISO8859_7,
	"ISO_8859_8": charmap.ISO8859_8,

	"KOI8R":  charmap.KOI8R,
	"KOI8U":  charmap.KOI8U,
	"WIN866": charmap.CodePage866,
	"WIN874": charmap.Windows874,

	"WIN1250": charmap.Windows1250,
	"WIN1251": charmap.Windows1251,
	"WIN1252": charmap.Windows1252,
	"WIN1253": charmap.Windows1253,
	"WIN1254": charmap.Windows1254,
	"WIN1255": charmap.Windows1255,
	"WIN1256": charmap.Windows1256,
	"WIN1257": charmap.Windows1257,
	"WIN1258": charmap.Windows1258,

	"BIG5":    traditionalchinese.Big5,
	"GBK":     simplifiedchinese.GBK,
	"GB18030": simplifiedchinese.GB18030,
	// GBK is a superset of EUC-CN (GB 2312), so it decodes EUC-CN data.
	"EUC_CN": simplifiedchinese.GBK,

	"EUC_JP": japanese.EUCJP,
	"SJIS":   japanese.ShiftJIS,
	// The 2004 variants add code points x/text lacks; the base decoders
	// cover the ranges servers emit in practice.
	"EUC_JIS_2004":   japanese.EUCJP,
	"SHIFT_JIS_2004": japanese.ShiftJIS,

	// x/text's EUC-KR table is Windows code page 949, which covers UHC.
	"EUC_KR": korean.EUCKR,
	"UHC":    korean.EUCKR,
}

// decoderFor returns a UTF-8 decoder for the named server encoding, or nil
// when the data needs no conversion (or none is available).
func decoderFor(name string) *encoding.Decoder {
	enc, ok := utf8Decoders[strings.ToUpper(name)]
	if !ok {
		return nil
	}
	return enc.NewDecoder()
}
