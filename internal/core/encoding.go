package core

// encoding.go detects and decodes the character encoding of uploaded CSVs.
// Spreadsheet exports in Japan are usually Shift_JIS (CP932); older systems
// emit EUC-JP; everything else is treated as UTF-8.

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Encoding names a detected source encoding.
type Encoding string

const (
	EncodingUTF8    Encoding = "UTF-8"
	EncodingUTF8BOM Encoding = "UTF-8 (BOM)"
	EncodingSJIS    Encoding = "Shift_JIS"
	EncodingEUCJP   Encoding = "EUC-JP"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// Decode converts raw file bytes to text. It never fails: undecodable bytes
// become U+FFFD and are left for validation to reject.
func Decode(data []byte) (string, Encoding) {
	if bytes.HasPrefix(data, bomUTF8) {
		return toValidUTF8(data[len(bomUTF8):]), EncodingUTF8BOM
	}

	enc := DetectEncoding(data)
	var dec encoding.Encoding
	switch enc {
	case EncodingSJIS:
		dec = japanese.ShiftJIS
	case EncodingEUCJP:
		dec = japanese.EUCJP
	default:
		return toValidUTF8(data), EncodingUTF8
	}

	out, _, err := transform.Bytes(dec.NewDecoder(), data)
	if err != nil {
		return toValidUTF8(data), EncodingUTF8
	}
	return string(out), enc
}

func toValidUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// DetectEncoding guesses the encoding of data without a BOM.
//
// Valid UTF-8 (including plain ASCII) wins outright. Otherwise the bytes are
// scanned under the Shift_JIS and EUC-JP byte grammars and the better fit is
// returned, provided at most one multibyte sequence in twenty is malformed.
// Failing that the data is treated as UTF-8.
func DetectEncoding(data []byte) Encoding {
	if utf8.Valid(data) {
		return EncodingUTF8
	}

	sjis := scanSJIS(data)
	euc := scanEUCJP(data)

	best, enc := sjis, EncodingSJIS
	if euc.score() < sjis.score() {
		best, enc = euc, EncodingEUCJP
	}
	if best.sequences == 0 || best.invalid*20 > best.sequences {
		return EncodingUTF8
	}
	return enc
}

type scanStats struct {
	sequences int // non-ASCII sequences seen
	invalid   int // malformed sequences
	halfKana  int // half-width katakana, rare in real text
}

// score ranks fits; lower is better. Half-width katakana is a weak signal
// that the other grammar is the real one.
func (s scanStats) score() int {
	return s.invalid*10 + s.halfKana
}

func scanSJIS(data []byte) scanStats {
	var s scanStats
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b < 0x80:
			continue
		case b >= 0xA1 && b <= 0xDF:
			s.sequences++
			s.halfKana++
		case (b >= 0x81 && b <= 0x9F) || (b >= 0xE0 && b <= 0xFC):
			s.sequences++
			if i+1 >= len(data) {
				s.invalid++
				continue
			}
			t := data[i+1]
			if (t >= 0x40 && t <= 0x7E) || (t >= 0x80 && t <= 0xFC) {
				i++
			} else {
				s.invalid++
			}
		default:
			s.sequences++
			s.invalid++
		}
	}
	return s
}

func scanEUCJP(data []byte) scanStats {
	isEUC := func(b byte) bool { return b >= 0xA1 && b <= 0xFE }

	var s scanStats
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b < 0x80:
			continue
		case b == 0x8E: // half-width katakana
			s.sequences++
			if i+1 < len(data) && data[i+1] >= 0xA1 && data[i+1] <= 0xDF {
				s.halfKana++
				i++
			} else {
				s.invalid++
			}
		case b == 0x8F: // JIS X 0212
			s.sequences++
			if i+2 < len(data) && isEUC(data[i+1]) && isEUC(data[i+2]) {
				i += 2
			} else {
				s.invalid++
			}
		case isEUC(b):
			s.sequences++
			if i+1 < len(data) && isEUC(data[i+1]) {
				i++
			} else {
				s.invalid++
			}
		default:
			s.sequences++
			s.invalid++
		}
	}
	return s
}
