package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ay01sec/labor-admin-sub000/internal/store"
)

// ============================================================================
// Fixture configs
// ============================================================================

func employeeConfig() ImportConfig {
	return ImportConfig{
		Key:              "employee",
		EntityName:       "社員",
		Collection:       "employees",
		IdentifierField:  "employeeCode",
		IdentifierColumn: "社員番号",
		FieldMappings: []FieldMapping{
			{CSVColumn: "社員番号", Field: "employeeCode", Type: FieldString, Required: true},
			{CSVColumn: "氏", Field: "name.last", Type: FieldString, Required: true},
			{CSVColumn: "名", Field: "name.first", Type: FieldString},
			{CSVColumn: "メールアドレス", Field: "email", Type: FieldEmail},
			{CSVColumn: "入社日", Field: "hireDate", Type: FieldDate},
			{CSVColumn: "年齢", Field: "age", Type: FieldNumber},
			{CSVColumn: "雇用形態", Field: "employmentType", Type: FieldEnum, Options: []string{"正社員", "契約社員"}},
			{CSVColumn: "保有資格", Field: "qualifications", Type: FieldArray},
			{CSVColumn: "有効", Field: "isActive", Type: FieldBoolean},
		},
		SampleData: map[string]string{
			"社員番号": "E001",
			"氏":    "山田",
			"名":    "太郎",
		},
	}
}

func clientConfig() ImportConfig {
	return ImportConfig{
		Key:              "client",
		EntityName:       "取引先",
		Collection:       "clients",
		IdentifierField:  "clientCode",
		IdentifierColumn: "取引先コード",
		FieldMappings: []FieldMapping{
			{CSVColumn: "取引先コード", Field: "clientCode", Type: FieldString, Required: true},
			{CSVColumn: "取引先名", Field: "name", Type: FieldString, Required: true},
		},
	}
}

func siteConfig() ImportConfig {
	return ImportConfig{
		Key:              "site",
		EntityName:       "現場",
		Collection:       "sites",
		IdentifierField:  "siteCode",
		IdentifierColumn: "現場コード",
		FieldMappings: []FieldMapping{
			{CSVColumn: "現場コード", Field: "siteCode", Type: FieldString, Required: true},
			{CSVColumn: "現場名", Field: "name", Type: FieldString, Required: true},
			{CSVColumn: "取引先コード", Field: "client.code", Type: FieldString},
			{CSVColumn: "取引先名", Field: "client.name", Type: FieldString, Required: true},
			{CSVColumn: "取引先ID", Field: "client.id", Type: FieldString, Derived: true},
		},
		Reference: &ReferenceConfig{
			Collection: "clients",
			CodeColumn: "取引先コード",
			CodeField:  "clientCode",
			NameColumn: "取引先名",
			NameField:  "name",
			IDColumn:   "取引先ID",
		},
	}
}

func testRegistry() *Registry {
	reg, err := NewRegistry(employeeConfig(), clientConfig(), siteConfig())
	if err != nil {
		panic(err)
	}
	return reg
}

// validRows builds n new employee rows numbered from row 2.
func validRows(n int) []ValidatedRow {
	rows := make([]ValidatedRow, n)
	for i := range rows {
		rows[i] = ValidatedRow{
			RowNumber: i + 2,
			OriginalData: map[string]string{
				"社員番号": fmt.Sprintf("E%04d", i+1),
				"氏":    "山田",
			},
		}
	}
	return rows
}

// employeeCSV builds a UTF-8 employee file with n data rows.
func employeeCSV(n int) []byte {
	var b strings.Builder
	b.WriteString("社員番号,氏,名\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "E%04d,山田,太郎\n", i+1)
	}
	return []byte(b.String())
}

// ============================================================================
// Store wrappers
// ============================================================================

var errInjected = errors.New("injected commit failure")

// flakyStore fails the commits whose 1-based sequence numbers are listed.
type flakyStore struct {
	*store.Memory

	mu      sync.Mutex
	commits int
	failOn  map[int]bool
}

func newFlakyStore(failOn ...int) *flakyStore {
	f := &flakyStore{Memory: store.NewMemory(), failOn: make(map[int]bool)}
	for _, n := range failOn {
		f.failOn[n] = true
	}
	return f
}

func (f *flakyStore) NewBatch() store.Batch {
	return &flakyBatch{Batch: f.Memory.NewBatch(), parent: f}
}

type flakyBatch struct {
	store.Batch
	parent *flakyStore
}

func (b *flakyBatch) Commit(ctx context.Context) error {
	b.parent.mu.Lock()
	b.parent.commits++
	fail := b.parent.failOn[b.parent.commits]
	b.parent.mu.Unlock()
	if fail {
		return errInjected
	}
	return b.Batch.Commit(ctx)
}

// queryErrorStore fails every Query.
type queryErrorStore struct {
	*store.Memory
}

func (queryErrorStore) Query(context.Context, string, ...store.Filter) ([]store.Document, error) {
	return nil, errors.New("connection refused")
}

// blockingStore holds every commit until release is closed.
type blockingStore struct {
	*store.Memory
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		Memory:  store.NewMemory(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingStore) NewBatch() store.Batch {
	return &blockingBatch{Batch: s.Memory.NewBatch(), parent: s}
}

type blockingBatch struct {
	store.Batch
	parent *blockingStore
}

func (b *blockingBatch) Commit(ctx context.Context) error {
	b.parent.once.Do(func() { close(b.parent.started) })
	<-b.parent.release
	return b.Batch.Commit(ctx)
}
