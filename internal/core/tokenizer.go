package core

// tokenizer.go splits decoded CSV text into rows and fields.
//
// Quoting follows RFC 4180: a field may be wrapped in double quotes, inside
// which commas and newlines are literal and "" is an escaped quote. Line
// endings CRLF, CR and LF are all accepted. Unquoted fields are trimmed;
// quoted fields keep their content exactly, and only whitespace outside the
// quotes is dropped.

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrNoDataRows is returned when a file has no header plus data row.
var ErrNoDataRows = errors.New("csv has no data rows")

// Tokenize splits text into rows of fields in a single pass.
func Tokenize(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		trailing strings.Builder // whitespace after a closing quote
		inQuotes bool
		quoted   bool
	)

	closeField := func() {
		v := field.String()
		if !quoted {
			v = strings.TrimSpace(v)
		}
		row = append(row, v)
		field.Reset()
		trailing.Reset()
		quoted = false
	}
	closeRow := func() {
		closeField()
		rows = append(rows, row)
		row = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inQuotes {
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					field.WriteRune('"')
					i++
					continue
				}
				inQuotes = false
				continue
			}
			field.WriteRune(c)
			continue
		}

		switch {
		case c == '"':
			if !quoted && strings.TrimSpace(field.String()) == "" {
				field.Reset()
			}
			field.WriteString(trailing.String())
			trailing.Reset()
			inQuotes = true
			quoted = true
		case c == ',':
			closeField()
		case c == '\n':
			closeRow()
		case quoted && unicode.IsSpace(c):
			trailing.WriteRune(c)
		default:
			field.WriteString(trailing.String())
			trailing.Reset()
			field.WriteRune(c)
		}
	}

	if field.Len() > 0 || len(row) > 0 || quoted {
		closeRow()
	}
	return rows
}

// ParseRows tokenizes text and zips each data row against the header.
//
// The header is row 1. Data rows are numbered by their position among the
// tokenized rows, so a skipped blank line still consumes a number.
func ParseRows(text string) ([]string, []ParsedRow, error) {
	text = strings.TrimPrefix(text, "\ufeff")

	tokens := Tokenize(text)
	if len(tokens) < 2 {
		return nil, nil, ErrNoDataRows
	}

	header := make([]string, len(tokens[0]))
	for i, h := range tokens[0] {
		header[i] = norm.NFC.String(h)
	}

	rows := make([]ParsedRow, 0, len(tokens)-1)
	for i, fields := range tokens[1:] {
		if isBlankRow(fields) {
			continue
		}
		data := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(fields) {
				data[h] = fields[j]
			} else {
				data[h] = ""
			}
		}
		rows = append(rows, ParsedRow{RowNumber: i + 2, Data: data})
	}
	return header, rows, nil
}

func isBlankRow(fields []string) bool {
	return len(fields) == 1 && fields[0] == ""
}
