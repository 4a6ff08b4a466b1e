package core

// export.go produces downloadable CSV files: templates, error reports and
// exports of stored records. Output is UTF-8 with a BOM, every field quoted,
// CRLF line endings.

import (
	"bytes"
	"cmp"
	"slices"
	"strings"

	"github.com/ay01sec/labor-admin-sub000/internal/store"
)

// ReasonColumn is the header of the appended error column.
const ReasonColumn = "エラー内容"

// errorSeparator joins several messages of one row.
const errorSeparator = " / "

func newCSV() *bytes.Buffer {
	var buf bytes.Buffer
	buf.Write(bomUTF8)
	return &buf
}

func writeRecord(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}

func valuesOf(data map[string]string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = data[c]
	}
	return out
}

// Template returns a CSV with the config's columns and its sample row.
func Template(cfg ImportConfig) []byte {
	cols := cfg.Columns()
	buf := newCSV()
	writeRecord(buf, cols)
	writeRecord(buf, valuesOf(cfg.SampleData, cols))
	return buf.Bytes()
}

// ErrorReport returns validation error rows followed by write failures, each
// with its messages in the reason column, ordered by row number.
func ErrorReport(cfg ImportConfig, errs []ErrorRow, failures []FailedRow) []byte {
	cols := cfg.Columns()
	buf := newCSV()
	writeRecord(buf, append(append([]string(nil), cols...), ReasonColumn))

	type line struct {
		row    int
		fields []string
	}
	lines := make([]line, 0, len(errs)+len(failures))
	for _, e := range errs {
		lines = append(lines, line{e.RowNumber, append(valuesOf(e.OriginalData, cols), strings.Join(e.Errors, errorSeparator))})
	}
	for _, f := range failures {
		lines = append(lines, line{f.RowNumber, append(valuesOf(f.Data, cols), f.Error)})
	}
	slices.SortStableFunc(lines, func(a, b line) int { return cmp.Compare(a.row, b.row) })

	for _, l := range lines {
		writeRecord(buf, l.fields)
	}
	return buf.Bytes()
}

// ExportRecords renders stored documents through the config's mappings.
// The output can be edited and imported again.
func ExportRecords(cfg ImportConfig, docs []store.Document) []byte {
	cols := cfg.Columns()
	buf := newCSV()
	writeRecord(buf, cols)

	sorted := sortedDocs(docs)
	idPath := ParsePath(cfg.IdentifierField)
	slices.SortStableFunc(sorted, func(a, b store.Document) int {
		ka, _ := stringAt(a.Fields, idPath)
		kb, _ := stringAt(b.Fields, idPath)
		return cmp.Compare(ka, kb)
	})

	for _, doc := range sorted {
		writeRecord(buf, valuesOf(FlattenRecord(doc.Fields, cfg.FieldMappings), cols))
	}
	return buf.Bytes()
}
