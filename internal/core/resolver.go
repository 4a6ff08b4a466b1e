package core

// resolver.go matches rows against records already in the store.
//
// Lookups are built once per import from a point-in-time snapshot. Records
// written concurrently by other sessions are not seen, so a row classified
// as new can still collide with a record created after the snapshot.

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ay01sec/labor-admin-sub000/internal/store"
)

// ExistingIndex maps identifier values to stored document ids.
type ExistingIndex map[string]string

// Reference is a referenced record found by code.
type Reference struct {
	ID   string
	Name string
}

// ReferenceIndex maps reference codes to records.
type ReferenceIndex map[string]Reference

// BuildExistingIndex keys docs by the value at identifierField. Documents
// without a usable value are omitted. When several documents share a value
// the smallest id wins.
func BuildExistingIndex(docs []store.Document, identifierField string) ExistingIndex {
	path := ParsePath(identifierField)
	idx := make(ExistingIndex, len(docs))
	for _, doc := range sortedDocs(docs) {
		key, ok := stringAt(doc.Fields, path)
		if !ok {
			continue
		}
		if _, seen := idx[key]; !seen {
			idx[key] = doc.ID
		}
	}
	return idx
}

// BuildReferenceIndex keys docs by their code field and keeps their name.
func BuildReferenceIndex(docs []store.Document, codeField, nameField string) ReferenceIndex {
	codePath, namePath := ParsePath(codeField), ParsePath(nameField)
	idx := make(ReferenceIndex, len(docs))
	for _, doc := range sortedDocs(docs) {
		code, ok := stringAt(doc.Fields, codePath)
		if !ok {
			continue
		}
		if _, seen := idx[code]; seen {
			continue
		}
		name, _ := stringAt(doc.Fields, namePath)
		idx[code] = Reference{ID: doc.ID, Name: name}
	}
	return idx
}

// LoadExistingIndex scans a collection and builds its identifier lookup.
func LoadExistingIndex(ctx context.Context, st store.Store, collection, identifierField string) (ExistingIndex, error) {
	docs, err := st.Query(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("load existing %s: %w", collection, err)
	}
	return BuildExistingIndex(docs, identifierField), nil
}

// LoadReferenceIndex scans the referenced collection.
func LoadReferenceIndex(ctx context.Context, st store.Store, collection string, ref ReferenceConfig) (ReferenceIndex, error) {
	docs, err := st.Query(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("load references %s: %w", collection, err)
	}
	return BuildReferenceIndex(docs, ref.CodeField, ref.NameField), nil
}

// ResolveExisting classifies a row by its identifier column. A blank
// identifier is always new.
func ResolveExisting(row map[string]string, identifierColumn string, idx ExistingIndex) (isUpdate bool, existingID string) {
	key := row[identifierColumn]
	if key == "" {
		return false, ""
	}
	if id, ok := idx[key]; ok {
		return true, id
	}
	return false, ""
}

// ApplyReference injects the referenced id into row and backfills a blank
// name column. Rows whose code is blank or unknown are left unchanged.
func ApplyReference(row map[string]string, ref ReferenceConfig, idx ReferenceIndex) {
	code := row[ref.CodeColumn]
	if code == "" {
		return
	}
	match, ok := idx[code]
	if !ok {
		return
	}
	row[ref.IDColumn] = match.ID
	if row[ref.NameColumn] == "" {
		row[ref.NameColumn] = match.Name
	}
}

func stringAt(fields map[string]any, path FieldPath) (string, bool) {
	v, ok := GetPath(fields, path)
	if !ok || v == nil {
		return "", false
	}
	s := strings.TrimSpace(flattenScalar(v))
	return s, s != ""
}

func sortedDocs(docs []store.Document) []store.Document {
	out := append([]store.Document(nil), docs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
