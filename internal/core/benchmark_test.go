package core

import (
	"context"
	"testing"

	"github.com/ay01sec/labor-admin-sub000/internal/store"
	"golang.org/x/text/encoding/japanese"
)

// ============================================================================
// Parsing Benchmarks
// ============================================================================

// BenchmarkParseRows benchmarks tokenizing and zipping a typical file.
func BenchmarkParseRows(b *testing.B) {
	text := string(employeeCSV(1000))

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := ParseRows(text); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDecode_ShiftJIS benchmarks detection plus transcoding.
func BenchmarkDecode_ShiftJIS(b *testing.B) {
	data, err := japanese.ShiftJIS.NewEncoder().Bytes(employeeCSV(1000))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Decode(data)
	}
}

// ============================================================================
// Validation Benchmarks
// ============================================================================

func BenchmarkValidateRow(b *testing.B) {
	mappings := employeeConfig().FieldMappings
	row := map[string]string{
		"社員番号":    "E001",
		"氏":       "山田",
		"メールアドレス": "yamada@example.com",
		"入社日":     "2020-04-01",
		"年齢":      "30",
		"雇用形態":    "正社員",
		"有効":      "true",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ValidateRow(row, mappings)
	}
}

func BenchmarkClassify(b *testing.B) {
	header, rows, err := ParseRows(string(employeeCSV(1000)))
	if err != nil {
		b.Fatal(err)
	}
	lk := Lookups{Existing: ExistingIndex{"E0500": "id500"}}
	cfg := employeeConfig()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Classify(rows, header, cfg, lk)
	}
}

// ============================================================================
// Import Benchmarks
// ============================================================================

func BenchmarkImporterRun(b *testing.B) {
	rows := validRows(1000)
	cfg := employeeConfig()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		im := NewImporter(store.NewMemory(), DefaultChunkSize)
		if _, err := im.Run(context.Background(), testCollection, rows, cfg, nil); err != nil {
			b.Fatal(err)
		}
	}
}
