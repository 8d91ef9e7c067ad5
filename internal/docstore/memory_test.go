package docstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	HOAID string `json:"hoaId,omitempty"`
	Rank  int    `json:"rank"`
}

func steppingClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.Exists(ctx, "hoas", "acme")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, "hoas", "acme")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "hoas", "acme", record{Name: "Acme"}))
	ok, err = s.Exists(ctx, "hoas", "acme")
	require.NoError(t, err)
	assert.True(t, ok)

	doc, err := s.Get(ctx, "hoas", "acme")
	require.NoError(t, err)
	var got record
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, "Acme", got.Name)
	assert.False(t, doc.CreatedAt.IsZero())

	require.NoError(t, s.Delete(ctx, "hoas", "acme"))
	ok, err = s.Exists(ctx, "hoas", "acme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreCreateIsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, "hoas", "acme", record{Name: "first"}))
	err := s.Create(ctx, "hoas", "acme", record{Name: "second"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	doc, err := s.Get(ctx, "hoas", "acme")
	require.NoError(t, err)
	var got record
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, "first", got.Name)
}

func TestMemoryStorePutOverwritesTimestamps(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore().WithClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	require.NoError(t, s.Put(ctx, "users", "u1", record{Name: "a"}))
	first, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "users", "u1", record{Name: "b"}))
	second, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)

	assert.True(t, second.CreatedAt.After(first.CreatedAt))
	assert.Equal(t, second.CreatedAt, second.UpdatedAt)
}

func TestMemoryStoreUpdateMerges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore().WithClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	err := s.Update(ctx, "hoas", "missing", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "hoas", "acme", record{Name: "Acme", Rank: 3}))
	require.NoError(t, s.Update(ctx, "hoas", "acme", map[string]any{"name": "Acme HOA"}))

	doc, err := s.Get(ctx, "hoas", "acme")
	require.NoError(t, err)
	var got record
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, record{Name: "Acme HOA", Rank: 3}, got)
	assert.True(t, doc.UpdatedAt.After(doc.CreatedAt))
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore().WithClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	require.NoError(t, s.Put(ctx, "violations", "v1", record{Name: "b", HOAID: "acme", Rank: 2}))
	require.NoError(t, s.Put(ctx, "violations", "v2", record{Name: "a", HOAID: "other", Rank: 1}))
	require.NoError(t, s.Put(ctx, "violations", "v3", record{Name: "c", HOAID: "acme", Rank: 1}))

	docs, err := s.List(ctx, Query{Collection: "violations", Where: []Filter{{Field: "hoaId", Value: "acme"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v3"}, keys(docs))

	docs, err = s.List(ctx, Query{Collection: "violations", Desc: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"v3", "v2"}, keys(docs))

	docs, err = s.List(ctx, Query{Collection: "violations", OrderBy: "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v2", "v1", "v3"}, keys(docs))

	docs, err = s.List(ctx, Query{Collection: "violations", Where: []Filter{{Field: "rank", Value: 1}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"v2", "v3"}, keys(docs))

	docs, err = s.List(ctx, Query{Collection: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStoreRawMessage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "c", "k", json.RawMessage(`{"name":"raw"}`)))
	doc, err := s.Get(ctx, "c", "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"raw"}`, string(doc.Data))
}

func TestMemoryStoreSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "violations", "v1", record{HOAID: "acme"}))

	sub, err := s.Subscribe(ctx, Query{Collection: "violations", Where: []Filter{{Field: "hoaId", Value: "acme"}}})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	assert.Equal(t, []string{"v1"}, keys(sub.Initial))

	require.NoError(t, s.Put(ctx, "violations", "v2", record{HOAID: "acme"}))
	assert.Equal(t, []string{"v1", "v2"}, keys(next(t, sub)))

	require.NoError(t, s.Delete(ctx, "violations", "v1"))
	assert.Equal(t, []string{"v2"}, keys(next(t, sub)))

	// Writes to other collections do not produce snapshots.
	require.NoError(t, s.Put(ctx, "hoas", "acme", record{}))
	select {
	case snap := <-sub.C:
		t.Fatalf("unexpected snapshot %v", keys(snap))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStoreSubscribeKeepsLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sub, err := s.Subscribe(ctx, Query{Collection: "c"})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, "c", k, record{}))
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys(next(t, sub)))
}

func TestMemoryStoreUnsubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()

	sub, err := s.Subscribe(ctx, Query{Collection: "c"})
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after context cancel")
	}

	sub.Unsubscribe()
	require.NoError(t, s.Put(context.Background(), "c", "k", record{}))
}

func next(t *testing.T, sub *Subscription) []Document {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func keys(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Key)
	}
	return out
}
