package core

import (
	"context"
	"testing"
	"time"

	"github.com/ay01sec/labor-admin-sub000/internal/store"
)

func TestRecordAndListHistory(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	entries := []HistoryEntry{
		{ID: "h1", Entity: "employee", Status: "completed", CreatedCount: 3, StartedAt: base, FinishedAt: base.Add(time.Second)},
		{ID: "h2", Entity: "employee", Status: "cancelled", FailedCount: 2, StartedAt: base.Add(time.Hour)},
		{ID: "h3", Entity: "site", Status: "completed", StartedAt: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		if err := RecordHistory(ctx, st, "co1", e); err != nil {
			t.Fatalf("RecordHistory(%s) error = %v", e.ID, err)
		}
	}

	got, err := ListHistory(ctx, st, "co1", "employee")
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "h2" || got[1].ID != "h1" {
		t.Errorf("order = %s, %s, want newest first", got[0].ID, got[1].ID)
	}
	if got[1].CreatedCount != 3 || !got[1].FinishedAt.Equal(base.Add(time.Second)) {
		t.Errorf("h1 = %+v, want counts and times restored", got[1])
	}

	other, err := ListHistory(ctx, st, "co2", "employee")
	if err != nil {
		t.Fatalf("ListHistory(co2) error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("co2 history = %d entries, want 0", len(other))
	}
}

func TestHistoryFromDoc_JSONShapes(t *testing.T) {
	doc := store.Document{ID: "h1", Fields: map[string]any{
		"entity":       "client",
		"createdCount": float64(4),
		"startedAt":    "2024-04-01T09:00:00Z",
	}}

	h := historyFromDoc(doc)
	if h.CreatedCount != 4 {
		t.Errorf("CreatedCount = %d, want 4", h.CreatedCount)
	}
	if !h.StartedAt.Equal(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("StartedAt = %v, want 2024-04-01T09:00:00Z", h.StartedAt)
	}
}
