package entities

import (
	"testing"

	"github.com/ay01sec/labor-admin-sub000/internal/core"
)

func TestDefault_RegistersAll(t *testing.T) {
	reg := Default()

	if reg.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", reg.Len())
	}
	for _, key := range []string{Employee, Client, Site} {
		if _, ok := reg.Get(key); !ok {
			t.Errorf("Get(%q) not registered", key)
		}
	}
}

func TestConfigs_Validate(t *testing.T) {
	for _, cfg := range All() {
		t.Run(cfg.Key, func(t *testing.T) {
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}

func TestConfigs_SampleRowIsValid(t *testing.T) {
	for _, cfg := range All() {
		t.Run(cfg.Key, func(t *testing.T) {
			if errs := core.ValidateRow(cfg.SampleData, cfg.FieldMappings); len(errs) > 0 {
				t.Errorf("sample row errors = %v", errs)
			}
			for _, col := range cfg.Columns() {
				if _, ok := cfg.SampleData[col]; !ok {
					t.Errorf("sample row missing column %q", col)
				}
			}
		})
	}
}

func TestSiteConfig_Reference(t *testing.T) {
	cfg := SiteConfig()

	if !cfg.ResolveClientReference() {
		t.Fatal("ResolveClientReference() = false, want true")
	}
	for _, col := range cfg.Columns() {
		if col == cfg.Reference.IDColumn {
			t.Errorf("Columns() includes derived column %q", col)
		}
	}
	if cfg.Reference.Collection != ClientConfig().Collection {
		t.Errorf("Reference.Collection = %q, want %q", cfg.Reference.Collection, ClientConfig().Collection)
	}
}

func TestEmployeeConfig_NestedRecord(t *testing.T) {
	cfg := EmployeeConfig()

	record, err := core.ToRecord(cfg.SampleData, cfg.FieldMappings)
	if err != nil {
		t.Fatalf("ToRecord() error = %v", err)
	}
	name, ok := record["name"].(map[string]any)
	if !ok {
		t.Fatalf("record[name] = %T, want map", record["name"])
	}
	if name["last"] != "山田" || name["first"] != "太郎" {
		t.Errorf("name = %v, want last=山田 first=太郎", name)
	}
	quals, ok := record["qualifications"].([]string)
	if !ok || len(quals) != 2 {
		t.Errorf("qualifications = %v, want 2 items", record["qualifications"])
	}
	if record["isActive"] != true {
		t.Errorf("isActive = %v, want true", record["isActive"])
	}
}
