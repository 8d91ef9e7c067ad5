package docstore

import (
	"context"
	"log/slog"
	"sync"
)

type lister func(ctx context.Context, q Query) ([]Document, error)

type subscriber struct {
	query  Query
	mu     sync.Mutex
	closed bool
	ch     chan []Document
}

// offer replaces any undelivered snapshot with snap.
func (s *subscriber) offer(snap []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// feed fans collection change events out to subscribers as fresh snapshots.
type feed struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscriber
}

func newFeed() *feed {
	return &feed{subs: make(map[int]*subscriber)}
}

func (f *feed) subscribe(ctx context.Context, q Query, list lister) (*Subscription, error) {
	sub := &subscriber{query: q, ch: make(chan []Document, 1)}

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = sub
	f.mu.Unlock()

	initial, err := list(ctx, q)
	if err != nil {
		f.remove(id)
		return nil, err
	}

	s := &Subscription{Initial: initial, C: sub.ch, cancel: func() { f.remove(id) }}
	context.AfterFunc(ctx, s.Unsubscribe)
	return s, nil
}

func (f *feed) remove(id int) {
	f.mu.Lock()
	sub, ok := f.subs[id]
	delete(f.subs, id)
	f.mu.Unlock()
	if ok {
		sub.close()
	}
}

func (f *feed) publish(ctx context.Context, collection string, list lister) {
	f.mu.Lock()
	var targets []*subscriber
	for _, sub := range f.subs {
		if sub.query.Collection == collection {
			targets = append(targets, sub)
		}
	}
	f.mu.Unlock()

	for _, sub := range targets {
		snap, err := list(ctx, sub.query)
		if err != nil {
			slog.Warn("docstore snapshot failed", "collection", collection, "error", err)
			continue
		}
		sub.offer(snap)
	}
}
