package core

// convert.go maps flat CSV rows to nested records and back.

import "fmt"

// ToRecord converts a row to a nested record following mappings.
//
// Columns that are absent or empty are skipped entirely so that an update
// only touches the fields the file actually carries. Mappings sharing a
// parent path merge into the same nested object.
func ToRecord(row map[string]string, mappings []FieldMapping) (map[string]any, error) {
	record := make(map[string]any, len(mappings))
	for _, m := range mappings {
		raw, ok := row[m.CSVColumn]
		if !ok || raw == "" {
			continue
		}
		if err := SetPath(record, ParsePath(m.Field), m.Type.kind().convert(raw)); err != nil {
			return nil, fmt.Errorf("%s: %w", m.CSVColumn, err)
		}
	}
	return record, nil
}

// FlattenRecord renders a stored record back to CSV column values.
// Fields missing from the record become empty strings.
func FlattenRecord(record map[string]any, mappings []FieldMapping) map[string]string {
	row := make(map[string]string, len(mappings))
	for _, m := range mappings {
		v, ok := GetPath(record, ParsePath(m.Field))
		if !ok {
			row[m.CSVColumn] = ""
			continue
		}
		row[m.CSVColumn] = m.Type.kind().flatten(v)
	}
	return row
}
