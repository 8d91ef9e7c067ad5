// Package docstore is a small document database abstraction: JSON documents
// addressed by (collection, key), with server-assigned timestamps and live
// query subscriptions.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// Ordering on document metadata rather than a body field.
const (
	OrderByCreated = "created_at"
	OrderByUpdated = "updated_at"
)

type Document struct {
	Collection string
	Key        string
	Data       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (d *Document) Decode(dest any) error {
	return json.Unmarshal(d.Data, dest)
}

// Filter matches documents whose top-level field equals Value, compared in
// its string form.
type Filter struct {
	Field string
	Value any
}

type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Store is implemented by MemoryStore and PostgresStore.
type Store interface {
	Exists(ctx context.Context, collection, key string) (bool, error)
	Get(ctx context.Context, collection, key string) (*Document, error)
	// Put creates or fully replaces a document and resets both timestamps.
	Put(ctx context.Context, collection, key string, data any) error
	// Create writes only if no document exists under key, else ErrAlreadyExists.
	Create(ctx context.Context, collection, key string, data any) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, collection, key string, fields map[string]any) error
	Delete(ctx context.Context, collection, key string) error
	List(ctx context.Context, q Query) ([]Document, error)
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
}

// Subscription delivers the full result set of a query every time a document
// in its collection changes. A consumer that falls behind only sees the most
// recent snapshot. It ends when the subscribing context is done or
// Unsubscribe is called, after which C is closed.
type Subscription struct {
	Initial []Document
	C       <-chan []Document

	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

func marshal(data any) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(data)
}
