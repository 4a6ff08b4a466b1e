package core

// preview.go runs the validate phase over parsed rows.

import "sort"

// Lookups are the store snapshots a validation run needs.
type Lookups struct {
	Existing   ExistingIndex
	References ReferenceIndex // nil unless the config resolves references
}

// Classify resolves, validates and partitions rows, in file order.
//
// Each row's data is copied before reference resolution so the caller's
// rows are not modified. A row with any violation is an error row; it still
// carries its update classification for reporting.
func Classify(rows []ParsedRow, header []string, cfg ImportConfig, lk Lookups) *ValidationResult {
	res := &ValidationResult{
		ValidRows:      make([]ValidatedRow, 0, len(rows)),
		ErrorRows:      make([]ErrorRow, 0),
		MissingColumns: MissingColumns(header, cfg.FieldMappings),
	}

	seen := make(map[string][]int)
	for _, row := range rows {
		data := make(map[string]string, len(row.Data)+1)
		for k, v := range row.Data {
			data[k] = v
		}
		if cfg.Reference != nil && lk.References != nil {
			ApplyReference(data, *cfg.Reference, lk.References)
		}

		isUpdate, existingID := ResolveExisting(data, cfg.IdentifierColumn, lk.Existing)
		if key := data[cfg.IdentifierColumn]; key != "" {
			seen[key] = append(seen[key], row.RowNumber)
		}

		if errs := ValidateRow(data, cfg.FieldMappings); len(errs) > 0 {
			res.ErrorRows = append(res.ErrorRows, ErrorRow{
				RowNumber:    row.RowNumber,
				OriginalData: data,
				IsUpdate:     isUpdate,
				ExistingID:   existingID,
				Errors:       errs,
			})
			continue
		}

		res.ValidRows = append(res.ValidRows, ValidatedRow{
			RowNumber:    row.RowNumber,
			OriginalData: data,
			IsUpdate:     isUpdate,
			ExistingID:   existingID,
		})
		if isUpdate {
			res.UpdateCount++
		} else {
			res.NewCount++
		}
	}

	res.ErrorCount = len(res.ErrorRows)
	res.TotalCount = len(res.ValidRows) + len(res.ErrorRows)
	res.Duplicates = duplicates(seen)
	return res
}

func duplicates(seen map[string][]int) []Duplicate {
	var dups []Duplicate
	for key, rows := range seen {
		if len(rows) > 1 {
			dups = append(dups, Duplicate{Identifier: key, Rows: rows})
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].Rows[0] < dups[j].Rows[0] })
	return dups
}
