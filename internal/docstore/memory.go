package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps documents in process. It backs local development when no
// database is configured, and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
	now  func() time.Time
	feed *feed
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]Document),
		now:  time.Now,
		feed: newFeed(),
	}
}

// WithClock replaces the timestamp source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Exists(ctx context.Context, collection, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[collection][key]
	return ok, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) Put(ctx context.Context, collection, key string, data any) error {
	raw, err := marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	now := s.now().UTC()

	s.mu.Lock()
	s.collection(collection)[key] = Document{
		Collection: collection, Key: key, Data: raw, CreatedAt: now, UpdatedAt: now,
	}
	s.mu.Unlock()

	s.feed.publish(ctx, collection, s.List)
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, collection, key string, data any) error {
	raw, err := marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	now := s.now().UTC()

	s.mu.Lock()
	docs := s.collection(collection)
	if _, ok := docs[key]; ok {
		s.mu.Unlock()
		return ErrAlreadyExists
	}
	docs[key] = Document{Collection: collection, Key: key, Data: raw, CreatedAt: now, UpdatedAt: now}
	s.mu.Unlock()

	s.feed.publish(ctx, collection, s.List)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	s.mu.Lock()
	doc, ok := s.docs[collection][key]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	body := map[string]json.RawMessage{}
	if err := json.Unmarshal(doc.Data, &body); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("decode document: %w", err)
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("marshal field %s: %w", k, err)
		}
		body[k] = raw
	}
	merged, err := json.Marshal(body)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("marshal document: %w", err)
	}
	doc.Data = merged
	doc.UpdatedAt = s.now().UTC()
	s.docs[collection][key] = doc
	s.mu.Unlock()

	s.feed.publish(ctx, collection, s.List)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	_, ok := s.docs[collection][key]
	delete(s.docs[collection], key)
	s.mu.Unlock()

	if ok {
		s.feed.publish(ctx, collection, s.List)
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, q Query) ([]Document, error) {
	s.mu.RLock()
	var out []Document
	for _, doc := range s.docs[q.Collection] {
		match, err := matches(doc, q.Where)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if match {
			out = append(out, doc)
		}
	}
	s.mu.RUnlock()

	sortDocuments(out, q.OrderBy, q.Desc)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	return s.feed.subscribe(ctx, q, s.List)
}

// collection must be called with s.mu held for writing.
func (s *MemoryStore) collection(name string) map[string]Document {
	docs, ok := s.docs[name]
	if !ok {
		docs = make(map[string]Document)
		s.docs[name] = docs
	}
	return docs
}

func matches(doc Document, where []Filter) (bool, error) {
	if len(where) == 0 {
		return true, nil
	}
	fields, err := topLevel(doc)
	if err != nil {
		return false, err
	}
	for _, f := range where {
		v, ok := fields[f.Field]
		if !ok || fmt.Sprint(v) != fmt.Sprint(f.Value) {
			return false, nil
		}
	}
	return true, nil
}

func topLevel(doc Document) (map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", doc.Collection, doc.Key, err)
	}
	return fields, nil
}

func sortDocuments(docs []Document, orderBy string, desc bool) {
	var less func(a, b Document) bool
	switch orderBy {
	case "", OrderByCreated:
		less = func(a, b Document) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case OrderByUpdated:
		less = func(a, b Document) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		less = func(a, b Document) bool {
			af, _ := topLevel(a)
			bf, _ := topLevel(b)
			return fmt.Sprint(af[orderBy]) < fmt.Sprint(bf[orderBy])
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.Key < b.Key
	})
}
