package core

// history.go keeps one document per write phase under
// companies/{companyId}/importHistory.

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ay01sec/labor-admin-sub000/internal/store"
)

// HistoryCollection is the collection name of import history documents.
const HistoryCollection = "importHistory"

// HistoryEntry summarizes one import.
type HistoryEntry struct {
	ID           string    `json:"id"`
	Entity       string    `json:"entity"`
	FileName     string    `json:"fileName"`
	Encoding     string    `json:"encoding"`
	Status       string    `json:"status"`
	TotalRows    int       `json:"totalRows"`
	CreatedCount int       `json:"createdCount"`
	UpdatedCount int       `json:"updatedCount"`
	ErrorCount   int       `json:"errorCount"`
	FailedCount  int       `json:"failedCount"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}

func (h HistoryEntry) fields() map[string]any {
	return map[string]any{
		"entity":       h.Entity,
		"fileName":     h.FileName,
		"encoding":     h.Encoding,
		"status":       h.Status,
		"totalRows":    h.TotalRows,
		"createdCount": h.CreatedCount,
		"updatedCount": h.UpdatedCount,
		"errorCount":   h.ErrorCount,
		"failedCount":  h.FailedCount,
		"startedAt":    h.StartedAt.UTC(),
		"finishedAt":   h.FinishedAt.UTC(),
	}
}

func historyFromDoc(doc store.Document) HistoryEntry {
	f := doc.Fields
	str := func(k string) string { s, _ := f[k].(string); return s }
	return HistoryEntry{
		ID:           doc.ID,
		Entity:       str("entity"),
		FileName:     str("fileName"),
		Encoding:     str("encoding"),
		Status:       str("status"),
		TotalRows:    intValue(f["totalRows"]),
		CreatedCount: intValue(f["createdCount"]),
		UpdatedCount: intValue(f["updatedCount"]),
		ErrorCount:   intValue(f["errorCount"]),
		FailedCount:  intValue(f["failedCount"]),
		StartedAt:    timeValue(f["startedAt"]),
		FinishedAt:   timeValue(f["finishedAt"]),
	}
}

// RecordHistory writes entry for a company.
func RecordHistory(ctx context.Context, st store.Store, companyID string, entry HistoryEntry) error {
	coll := store.CompanyCollection(companyID, HistoryCollection)
	if err := st.Set(ctx, coll, entry.ID, entry.fields()); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// ListHistory returns a company's history for entity, newest first.
func ListHistory(ctx context.Context, st store.Store, companyID, entity string) ([]HistoryEntry, error) {
	coll := store.CompanyCollection(companyID, HistoryCollection)
	docs, err := st.Query(ctx, coll, store.Where("entity", entity))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	entries := make([]HistoryEntry, len(docs))
	for i, doc := range docs {
		entries[i] = historyFromDoc(doc)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].StartedAt.Equal(entries[j].StartedAt) {
			return entries[i].StartedAt.After(entries[j].StartedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func intValue(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return 0
}

// timeValue accepts time.Time and the RFC 3339 strings JSON stores return.
func timeValue(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
