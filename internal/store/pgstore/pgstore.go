// Package pgstore implements store.Store on PostgreSQL using one JSONB
// documents table keyed by (collection, id).
package pgstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ay01sec/labor-admin-sub000/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the documents table.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data jsonb_path_ops);
`

const (
	querySQL  = `SELECT id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb`
	getSQL    = `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	setSQL    = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
	updateSQL = `UPDATE documents SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2`
	deleteSQL = `DELETE FROM documents WHERE collection = $1 AND id = $2`
)

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a Postgres-backed document store.
type Store struct {
	pool *pgxpool.Pool
}

// Options configures the connection pool.
type Options struct {
	URL            string
	MaxConns       int
	MinConns       int
	ConnectTimeout time.Duration
}

// Connect opens a pool, pings it and ensures the schema exists.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(connectCtx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	filter, err := FilterJSON(filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, querySQL, collection, filter)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		fields, err := DecodeFields(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		docs = append(docs, store.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, getSQL, collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	fields, err := DecodeFields(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &store.Document{ID: id, Fields: fields}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := store.ValidateKey(collection, id); err != nil {
		return err
	}
	return apply(ctx, s.pool, store.Op{Kind: store.OpSet, Collection: collection, ID: id, Fields: fields})
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := store.ValidateKey(collection, id); err != nil {
		return err
	}
	return apply(ctx, s.pool, store.Op{Kind: store.OpUpdate, Collection: collection, ID: id, Fields: fields})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, deleteSQL, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

func apply(ctx context.Context, db execer, op store.Op) error {
	data, err := json.Marshal(op.Fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", op.Collection, op.ID, err)
	}

	switch op.Kind {
	case store.OpSet:
		if _, err := db.Exec(ctx, setSQL, op.Collection, op.ID, data); err != nil {
			return fmt.Errorf("set %s/%s: %w", op.Collection, op.ID, err)
		}
	case store.OpUpdate:
		tag, err := db.Exec(ctx, updateSQL, op.Collection, op.ID, data)
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, store.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) NewBatch() store.Batch {
	return &batch{s: s}
}

type batch struct {
	s   *Store
	ops store.Ops
}

func (b *batch) Set(collection, id string, fields map[string]any) error {
	return b.ops.Add(store.OpSet, collection, id, fields)
}

func (b *batch) Update(collection, id string, fields map[string]any) error {
	return b.ops.Add(store.OpUpdate, collection, id, fields)
}

func (b *batch) Len() int { return b.ops.Len() }

func (b *batch) Commit(ctx context.Context) error {
	ops, err := b.ops.Take()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	tx, err := b.s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, op := range ops {
		if err := apply(ctx, tx, op); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(ops), err)
	}
	return nil
}

// FilterJSON encodes equality filters as a JSONB containment document.
func FilterJSON(filters []store.Filter) ([]byte, error) {
	m := make(map[string]any, len(filters))
	for _, f := range filters {
		m[f.Field] = f.Value
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return data, nil
}

// DecodeFields decodes a JSONB document. Integral numbers become int.
func DecodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		fields[k] = numbers(v)
	}
	return fields, nil
}

func numbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, val := range t {
			t[k] = numbers(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = numbers(t[i])
		}
		return t
	default:
		return v
	}
}
