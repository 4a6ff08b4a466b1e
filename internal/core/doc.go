// Package core implements the CSV import pipeline for the labor-admin
// master data (employees, clients, sites).
//
// An import runs in two phases:
//
//  1. Validate: the uploaded bytes are decoded (UTF-8, Shift_JIS or EUC-JP),
//     tokenized, cross-referenced against the records already stored for the
//     company and checked against the entity's field mappings. The outcome is
//     a ValidationResult splitting rows into valid and error rows, with each
//     valid row classified as a create or an update.
//
//  2. Write: valid rows are committed in fixed-size chunks, one atomic batch
//     per chunk. A failed chunk demotes its rows to FailedRows and the import
//     carries on with the next chunk. Progress is reported after every chunk.
//
// Service wraps both phases into sessions that can be observed and cancelled
// from the HTTP layer. The pipeline functions (Decode, Tokenize, ParseRows,
// ToRecord, ValidateRow, Classify, Importer.Run) are usable on their own.
package core
