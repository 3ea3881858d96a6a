// Package store is the document store adapter. It exposes only the single
// document operations the service needs: lookup by key, equality-filtered
// listing, merge upsert, insert with a unique key, and conditional
// update/delete. No operation spans more than one document atomically.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by FindByKey when no document has the key.
	ErrNotFound = errors.New("store: document not found")
	// ErrDuplicateKey is returned by Insert when the key is already taken.
	ErrDuplicateKey = errors.New("store: duplicate key")
	// ErrEmptyUpdate is returned when an upsert or update has no fields to set.
	ErrEmptyUpdate = errors.New("store: no fields to set")
)

// Document is a schemaless record.
type Document map[string]any

// Filter matches documents whose fields equal every given value.
type Filter map[string]any

// Collection names a collection and the field that uniquely keys it.
type Collection struct {
	Name string
	Key  string
}

// Collections used by the service.
var (
	Users       = Collection{Name: "user", Key: "email"}
	Orders      = Collection{Name: "orders", Key: "_id"}
	Services    = Collection{Name: "service", Key: "_id"}
	Prints      = Collection{Name: "prints", Key: "_id"}
	Reviews     = Collection{Name: "reviews", Key: "_id"}
	Carts       = Collection{Name: "cart", Key: "_id"}
	Idempotency = Collection{Name: "idempotency", Key: "idempotency_key"}
)

// All lists every collection, used to provision indexes and tables.
var All = []Collection{Users, Orders, Services, Prints, Reviews, Carts, Idempotency}

// UpsertResult reports what an upsert did.
type UpsertResult struct {
	Matched  int64 `json:"matchedCount"`
	Upserted bool  `json:"upserted"`
}

// Store is implemented by every backend.
type Store interface {
	// FindByKey decodes the document keyed by key into out.
	FindByKey(ctx context.Context, c Collection, key string, out any) error
	// FindMatching decodes every document matching filter into out, which
	// must be a pointer to a slice.
	FindMatching(ctx context.Context, c Collection, filter Filter, out any) error
	// Upsert merges fields into the document keyed by key, creating it if absent.
	Upsert(ctx context.Context, c Collection, key string, fields any) (UpsertResult, error)
	// Insert stores doc and returns its key. An empty key is replaced with
	// a generated identifier.
	Insert(ctx context.Context, c Collection, doc any) (string, error)
	// UpdateMatching sets fields on every document matching filter and
	// returns the number of documents matched.
	UpdateMatching(ctx context.Context, c Collection, filter Filter, set any) (int64, error)
	// DeleteMatching removes every document matching filter.
	DeleteMatching(ctx context.Context, c Collection, filter Filter) (int64, error)
}

// keyOf returns the string key in doc, or "" when it is missing or empty.
func keyOf(doc map[string]any, field string) string {
	v, ok := doc[field]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
