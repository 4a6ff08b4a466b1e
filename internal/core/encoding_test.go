package core

import (
	"testing"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

func encode(t *testing.T, enc encoding.Encoding, s string) []byte {
	t.Helper()
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode %q: %v", s, err)
	}
	return out
}

const japaneseCSV = "社員番号,氏,名\r\nE001,山田,太郎\r\nE002,佐藤,花子\r\n"

// ============================================================================
// DetectEncoding / Decode
// ============================================================================

func TestDecode_ShiftJIS(t *testing.T) {
	data := encode(t, japanese.ShiftJIS, japaneseCSV)

	text, enc := Decode(data)
	if enc != EncodingSJIS {
		t.Errorf("encoding = %q, want %q", enc, EncodingSJIS)
	}
	if text != japaneseCSV {
		t.Errorf("Decode() = %q, want %q", text, japaneseCSV)
	}

	header, _, err := ParseRows(text)
	if err != nil {
		t.Fatalf("ParseRows() error = %v", err)
	}
	if header[0] != "社員番号" {
		t.Errorf("header[0] = %q, want 社員番号", header[0])
	}
}

func TestDecode_EUCJP(t *testing.T) {
	data := encode(t, japanese.EUCJP, japaneseCSV)

	text, enc := Decode(data)
	if enc != EncodingEUCJP {
		t.Errorf("encoding = %q, want %q", enc, EncodingEUCJP)
	}
	if text != japaneseCSV {
		t.Errorf("Decode() = %q, want %q", text, japaneseCSV)
	}
}

func TestDecode_UTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, japaneseCSV...)

	text, enc := Decode(data)
	if enc != EncodingUTF8BOM {
		t.Errorf("encoding = %q, want %q", enc, EncodingUTF8BOM)
	}
	if text != japaneseCSV {
		t.Errorf("Decode() = %q, want BOM stripped", text)
	}
}

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Encoding
	}{
		{"ascii", []byte("a,b\n1,2\n"), EncodingUTF8},
		{"utf-8 japanese", []byte(japaneseCSV), EncodingUTF8},
		{"empty", nil, EncodingUTF8},
		{"garbage falls back to utf-8", []byte{0xFF, 0xFE, 'a'}, EncodingUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectEncoding(tt.data); got != tt.want {
				t.Errorf("DetectEncoding() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode_InvalidBytesReplaced(t *testing.T) {
	text, enc := Decode([]byte{0xFF, 0xFE, 'a'})
	if enc != EncodingUTF8 {
		t.Errorf("encoding = %q, want %q", enc, EncodingUTF8)
	}
	if text != "\uFFFDa" {
		t.Errorf("Decode() = %q, want %q", text, "\uFFFDa")
	}
}
