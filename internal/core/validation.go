package core

// validation.go checks rows and entity configurations.

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateRow returns every violation in row, in mapping order.
//
// A blank required column yields "<column>は必須です" and no further checks
// for that column. Blank optional columns are not checked.
func ValidateRow(row map[string]string, mappings []FieldMapping) []string {
	var errs []string
	for _, m := range mappings {
		raw := row[m.CSVColumn]
		if raw == "" {
			if m.Required {
				errs = append(errs, fmt.Sprintf("%sは必須です", m.CSVColumn))
			}
			continue
		}
		if msg := m.Type.kind().check(m, raw); msg != "" {
			errs = append(errs, msg)
		}
	}
	return errs
}

// MissingColumns returns required, non-derived columns absent from header.
func MissingColumns(header []string, mappings []FieldMapping) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, m := range mappings {
		if m.Required && !m.Derived && !present[m.CSVColumn] {
			missing = append(missing, m.CSVColumn)
		}
	}
	return missing
}

// Validate checks an ImportConfig for mistakes that would corrupt imports.
func (c ImportConfig) Validate() error {
	var errs []string

	if c.Key == "" {
		errs = append(errs, "key is required")
	}
	if c.Collection == "" || strings.Contains(c.Collection, "/") {
		errs = append(errs, fmt.Sprintf("collection %q must be a single path segment", c.Collection))
	}

	columns := make(map[string]bool, len(c.FieldMappings))
	leaves := make(map[string]bool, len(c.FieldMappings))
	identifierMapped := false
	for _, m := range c.FieldMappings {
		if m.CSVColumn == "" || m.Field == "" {
			errs = append(errs, "mapping with empty csvColumn or field")
			continue
		}
		if columns[m.CSVColumn] {
			errs = append(errs, fmt.Sprintf("duplicate csvColumn %q", m.CSVColumn))
		}
		columns[m.CSVColumn] = true
		if leaves[m.Field] {
			errs = append(errs, fmt.Sprintf("field %q mapped twice", m.Field))
		}
		leaves[m.Field] = true
		if m.Type < 0 || m.Type >= fieldTypeCount {
			errs = append(errs, fmt.Sprintf("%s: invalid type %d", m.CSVColumn, int(m.Type)))
		}
		if m.Type == FieldEnum && len(m.Options) == 0 {
			errs = append(errs, fmt.Sprintf("%s: enum without options", m.CSVColumn))
		}
		if m.CSVColumn == c.IdentifierColumn && m.Field == c.IdentifierField {
			identifierMapped = true
		}
	}

	// A leaf may not also be the parent of another mapping.
	for _, m := range c.FieldMappings {
		path := ParsePath(m.Field)
		for i := 1; i < len(path); i++ {
			if parent := path[:i].String(); leaves[parent] {
				errs = append(errs, fmt.Sprintf("field %q is both a value and the parent of %q", parent, m.Field))
			}
		}
	}

	if !identifierMapped {
		errs = append(errs, fmt.Sprintf("identifier column %q is not mapped to field %q", c.IdentifierColumn, c.IdentifierField))
	}

	if r := c.Reference; r != nil {
		for _, col := range []string{r.CodeColumn, r.NameColumn, r.IDColumn} {
			if !columns[col] {
				errs = append(errs, fmt.Sprintf("reference column %q is not mapped", col))
			}
		}
		if r.Collection == "" || r.CodeField == "" {
			errs = append(errs, "reference needs collection and codeField")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("import config %q: %w", c.Key, errors.New(strings.Join(errs, "; ")))
	}
	return nil
}
