// Package store defines the document store consumed by the import pipeline.
//
// A store holds documents addressed by a slash-separated collection path and
// an id. Documents are flat maps at the top level; values may be nested maps,
// slices, strings, numbers, booleans, time.Time or nil. Writes can be grouped
// into a Batch which commits atomically.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxBatchOps is the largest number of operations a single batch may stage.
const MaxBatchOps = 500

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrBatchTooLarge is returned when staging more than MaxBatchOps operations.
	ErrBatchTooLarge = errors.New("batch operation limit exceeded")
	// ErrBatchCommitted is returned when a batch is reused after Commit.
	ErrBatchCommitted = errors.New("batch already committed")
)

// Document is a stored record.
type Document struct {
	ID     string
	Fields map[string]any
}

// Filter is a top-level equality predicate.
type Filter struct {
	Field string
	Value any
}

// Where builds a Filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Store is the document store.
type Store interface {
	// Query returns every document of the collection matching all filters.
	// Order is unspecified.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Set creates or fully overwrites a document.
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	NewBatch() Batch
}

// Batch stages writes and commits them as one atomic unit.
type Batch interface {
	Set(collection, id string, fields map[string]any) error
	Update(collection, id string, fields map[string]any) error
	Len() int
	// Commit applies every staged write or none of them.
	Commit(ctx context.Context) error
}

// OpKind identifies a staged batch operation.
type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
)

// Op is one staged batch operation. Adapters share it to implement Batch.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Fields     map[string]any
}

// Ops is an operation list with the staging rules every adapter applies.
type Ops struct {
	ops       []Op
	committed bool
}

// Add stages an operation.
func (o *Ops) Add(kind OpKind, collection, id string, fields map[string]any) error {
	if o.committed {
		return ErrBatchCommitted
	}
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	if len(o.ops) >= MaxBatchOps {
		return ErrBatchTooLarge
	}
	cloned := CloneFields(fields)
	if cloned == nil {
		cloned = map[string]any{}
	}
	o.ops = append(o.ops, Op{Kind: kind, Collection: collection, ID: id, Fields: cloned})
	return nil
}

// Len returns the number of staged operations.
func (o *Ops) Len() int { return len(o.ops) }

// Take marks the list committed and returns the staged operations.
func (o *Ops) Take() ([]Op, error) {
	if o.committed {
		return nil, ErrBatchCommitted
	}
	o.committed = true
	return o.ops, nil
}

// ValidateKey checks a collection path and document id.
func ValidateKey(collection, id string) error {
	if collection == "" || strings.HasPrefix(collection, "/") || strings.HasSuffix(collection, "/") {
		return fmt.Errorf("invalid collection path %q", collection)
	}
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

// CompanyCollection returns the tenant-scoped path of a collection.
func CompanyCollection(companyID, collection string) string {
	return "companies/" + companyID + "/" + collection
}

// CloneFields deep-copies nested maps and slices so callers cannot mutate
// staged or stored data.
func CloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneFields(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
