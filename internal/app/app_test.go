package app

import (
	"context"
	"testing"
	"time"

	"github.com/ay01sec/labor-admin-sub000/internal/config"
	"github.com/ay01sec/labor-admin-sub000/internal/store"
)

func TestOpenStore_Memory(t *testing.T) {
	st, closeFn, err := OpenStore(context.Background(), config.StoreConfig{Driver: config.DriverMemory})
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer closeFn()
	if _, ok := st.(*store.Memory); !ok {
		t.Errorf("store = %T, want *store.Memory", st)
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	if _, _, err := OpenStore(context.Background(), config.StoreConfig{Driver: "redis"}); err == nil {
		t.Fatal("OpenStore() expected error")
	}
}

func TestServiceOptions(t *testing.T) {
	cfg := config.ImportConfig{
		ChunkSize:     250,
		MaxFileSize:   1024,
		MaxConcurrent: 3,
		MaxWaitTime:   time.Second,
		Timeout:       time.Minute,
		SessionTTL:    2 * time.Minute,
		ResultTTL:     3 * time.Minute,
	}
	got := ServiceOptions(cfg)
	if got.ChunkSize != 250 || got.MaxFileSize != 1024 || got.MaxConcurrent != 3 {
		t.Errorf("ServiceOptions() = %+v", got)
	}
	if got.MaxWait != time.Second || got.SessionTTL != 2*time.Minute || got.ResultTTL != 3*time.Minute {
		t.Errorf("ServiceOptions() durations = %+v", got)
	}
}

func TestNewService_RegistersEntities(t *testing.T) {
	svc := NewService(store.NewMemory(), config.ImportConfig{})
	if n := len(svc.Entities()); n != 3 {
		t.Errorf("entities = %d, want 3", n)
	}
}
