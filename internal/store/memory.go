package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]map[string]any)}
}

func (m *Memory) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []Document
	for id, fields := range m.collections[collection] {
		if !matches(fields, filters) {
			continue
		}
		docs = append(docs, Document{ID: id, Fields: CloneFields(fields)})
	}
	return docs, nil
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok || !reflect.DeepEqual(v, f.Value) {
			return false
		}
	}
	return true
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return &Document{ID: id, Fields: CloneFields(fields)}, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	b := m.NewBatch()
	if err := b.Set(collection, id, fields); err != nil {
		return err
	}
	return b.Commit(ctx)
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	b := m.NewBatch()
	if err := b.Update(collection, id, fields); err != nil {
		return err
	}
	return b.Commit(ctx)
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collections[collection]
	if _, ok := docs[id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	delete(docs, id)
	return nil
}

// Len returns the number of documents in a collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func (m *Memory) NewBatch() Batch {
	return &memoryBatch{m: m}
}

type memoryBatch struct {
	m   *Memory
	ops Ops
}

func (b *memoryBatch) Set(collection, id string, fields map[string]any) error {
	return b.ops.Add(OpSet, collection, id, fields)
}

func (b *memoryBatch) Update(collection, id string, fields map[string]any) error {
	return b.ops.Add(OpUpdate, collection, id, fields)
}

func (b *memoryBatch) Len() int { return b.ops.Len() }

// Commit checks every update target before applying anything.
func (b *memoryBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ops, err := b.ops.Take()
	if err != nil {
		return err
	}

	b.m.mu.Lock()
	defer b.m.mu.Unlock()

	created := make(map[string]bool)
	for _, op := range ops {
		key := op.Collection + "/" + op.ID
		if op.Kind == OpSet {
			created[key] = true
			continue
		}
		if _, ok := b.m.collections[op.Collection][op.ID]; !ok && !created[key] {
			return fmt.Errorf("update %s: %w", key, ErrNotFound)
		}
	}

	for _, op := range ops {
		docs := b.m.collections[op.Collection]
		if docs == nil {
			docs = make(map[string]map[string]any)
			b.m.collections[op.Collection] = docs
		}
		switch op.Kind {
		case OpSet:
			docs[op.ID] = op.Fields
		case OpUpdate:
			doc := docs[op.ID]
			for k, v := range op.Fields {
				doc[k] = v
			}
		}
	}
	return nil
}
