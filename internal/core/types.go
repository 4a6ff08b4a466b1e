package core

import (
	"math"
	"time"
)

// FieldMapping binds one CSV column to a field of the stored record.
type FieldMapping struct {
	CSVColumn string    `json:"csvColumn"`
	Field     string    `json:"field"` // dot-separated path, e.g. address.postalCode
	Type      FieldType `json:"type"`
	Required  bool      `json:"required"`
	Options   []string  `json:"options,omitempty"` // allowed values for FieldEnum

	// Derived columns are filled by reference resolution rather than by the
	// user. They are left out of templates and exports.
	Derived bool `json:"derived,omitempty"`
}

// ReferenceConfig describes a lookup of another entity by a code column,
// such as a site pointing at its client by 取引先コード.
type ReferenceConfig struct {
	Collection string `json:"collection"` // referenced collection, e.g. clients
	CodeColumn string `json:"codeColumn"` // CSV column holding the code
	CodeField  string `json:"codeField"`  // field of the referenced record matched against the code
	NameColumn string `json:"nameColumn"` // CSV column backfilled when blank
	NameField  string `json:"nameField"`  // field of the referenced record supplying the name
	IDColumn   string `json:"idColumn"`   // CSV column receiving the referenced id
}

// ImportConfig describes how one entity kind is imported.
type ImportConfig struct {
	Key              string            `json:"key"`        // registry key, e.g. employee
	EntityName       string            `json:"entityName"` // display label, e.g. 社員
	Collection       string            `json:"collection"` // collection name under the company
	IdentifierField  string            `json:"identifierField"`
	IdentifierColumn string            `json:"identifierColumn"`
	FieldMappings    []FieldMapping    `json:"fieldMappings"`
	SampleData       map[string]string `json:"sampleData,omitempty"`
	Reference        *ReferenceConfig  `json:"reference,omitempty"`
}

// ResolveClientReference reports whether rows need the secondary
// cross-entity lookup before validation.
func (c ImportConfig) ResolveClientReference() bool {
	return c.Reference != nil
}

// Columns returns the user-facing CSV columns in mapping order.
func (c ImportConfig) Columns() []string {
	cols := make([]string, 0, len(c.FieldMappings))
	for _, m := range c.FieldMappings {
		if !m.Derived {
			cols = append(cols, m.CSVColumn)
		}
	}
	return cols
}

// ParsedRow is one raw CSV data row keyed by header.
type ParsedRow struct {
	RowNumber int
	Data      map[string]string
}

// ValidatedRow is a row that passed validation.
type ValidatedRow struct {
	RowNumber    int               `json:"rowNumber"`
	OriginalData map[string]string `json:"originalData"`
	IsUpdate     bool              `json:"isUpdate"`
	ExistingID   string            `json:"existingId,omitempty"`
}

// ErrorRow is a row rejected by validation.
type ErrorRow struct {
	RowNumber    int               `json:"rowNumber"`
	OriginalData map[string]string `json:"originalData"`
	IsUpdate     bool              `json:"isUpdate"`
	ExistingID   string            `json:"existingId,omitempty"`
	Errors       []string          `json:"errors"`
}

// Duplicate is an identifier value repeated across rows of one file.
type Duplicate struct {
	Identifier string `json:"identifier"`
	Rows       []int  `json:"rows"`
}

// ValidationResult is the outcome of the validate phase.
//
// NewCount+UpdateCount == len(ValidRows), ErrorCount == len(ErrorRows) and
// TotalCount == len(ValidRows)+len(ErrorRows).
type ValidationResult struct {
	ValidRows   []ValidatedRow `json:"validRows"`
	ErrorRows   []ErrorRow     `json:"errorRows"`
	NewCount    int            `json:"newCount"`
	UpdateCount int            `json:"updateCount"`
	ErrorCount  int            `json:"errorCount"`
	TotalCount  int            `json:"totalCount"`

	// Informational. Neither affects classification.
	Duplicates     []Duplicate `json:"duplicates,omitempty"`
	MissingColumns []string    `json:"missingColumns,omitempty"`
}

// FailedRow is a valid row that could not be written.
type FailedRow struct {
	RowNumber int               `json:"rowNumber"`
	Error     string            `json:"error"`
	Data      map[string]string `json:"data"`
}

// ImportResult is the outcome of the write phase.
//
// SuccessCount == len(CreatedIDs)+len(UpdatedIDs) at all times.
type ImportResult struct {
	SuccessCount int         `json:"successCount"`
	CreatedIDs   []string    `json:"createdIds"`
	UpdatedIDs   []string    `json:"updatedIds"`
	FailedRows   []FailedRow `json:"failedRows"`
	Cancelled    bool        `json:"cancelled,omitempty"`
}

// Progress reports rows processed by the write phase.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Percent returns round(Current/Total*100). An empty import is complete.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 100
	}
	return int(math.Round(float64(p.Current) / float64(p.Total) * 100))
}

// ProgressFunc receives progress after every chunk.
type ProgressFunc func(Progress)

// Actor is the authenticated caller.
type Actor interface {
	CompanyID() string
	IsAdmin() bool
}

// StaticActor is a fixed Actor, used by the CLI and API-key auth.
type StaticActor struct {
	Company string
	Admin   bool
}

func (a StaticActor) CompanyID() string { return a.Company }
func (a StaticActor) IsAdmin() bool     { return a.Admin }

// Timestamp fields stamped on written records.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Clock returns the current time. Tests replace it.
type Clock func() time.Time
