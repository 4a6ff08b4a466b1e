// Package mongostore implements store.Store on MongoDB.
//
// Each collection path maps to one MongoDB collection whose name is the path
// with slashes replaced by dots (companies/c1/employees becomes
// companies.c1.employees). The document id is stored as _id. Batches commit
// inside a multi-document transaction, which requires a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ay01sec/labor-admin-sub000/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store is a MongoDB-backed document store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, timeout)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return New(client, database), nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// CollectionName converts a collection path to a MongoDB collection name.
func CollectionName(path string) string {
	return strings.ReplaceAll(path, "/", ".")
}

func (s *Store) coll(path string) *mongo.Collection {
	return s.db.Collection(CollectionName(path))
}

func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	filter := bson.M{}
	for _, f := range filters {
		filter[f.Field] = f.Value
	}

	cursor, err := s.coll(collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []store.Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		docs = append(docs, toDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var raw bson.M
	err := s.coll(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc := toDocument(raw)
	return &doc, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := store.ValidateKey(collection, id); err != nil {
		return err
	}
	return s.apply(ctx, store.Op{Kind: store.OpSet, Collection: collection, ID: id, Fields: fields})
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := store.ValidateKey(collection, id); err != nil {
		return err
	}
	return s.apply(ctx, store.Op{Kind: store.OpUpdate, Collection: collection, ID: id, Fields: fields})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.coll(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

// apply runs one write. ctx may be a mongo.SessionContext.
func (s *Store) apply(ctx context.Context, op store.Op) error {
	coll := s.coll(op.Collection)
	filter := bson.M{"_id": op.ID}

	switch op.Kind {
	case store.OpSet:
		doc := bson.M{}
		for k, v := range op.Fields {
			doc[k] = v
		}
		doc["_id"] = op.ID
		if _, err := coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
			return fmt.Errorf("set %s/%s: %w", op.Collection, op.ID, err)
		}
	case store.OpUpdate:
		res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": op.Fields})
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, err)
		}
		if res.MatchedCount == 0 {
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

	session, err := b.s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, op := range ops {
			if err := b.s.apply(sc, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(ops), err)
	}
	return nil
}

func toDocument(raw bson.M) store.Document {
	id := fmt.Sprint(raw["_id"])
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		fields[k] = normalize(v)
	}
	return store.Document{ID: id, Fields: fields}
}

// normalize converts driver-specific decode types to plain Go values.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case int32:
		return int(t)
	case int64:
		return int(t)
	default:
		return v
	}
}
