package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangeChannel is the NOTIFY channel the documents table trigger publishes
// collection names on.
const ChangeChannel = "docstore_changes"

// PostgresStore keeps documents as JSONB rows in the documents table.
type PostgresStore struct {
	db   *pgxpool.Pool
	feed *feed

	listenOnce sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	ctx, cancel := context.WithCancel(context.Background())
	return &PostgresStore{db: db, feed: newFeed(), ctx: ctx, cancel: cancel}
}

// Close stops the change listener. The pool is owned by the caller.
func (s *PostgresStore) Close() {
	s.cancel()
}

func (s *PostgresStore) Exists(ctx context.Context, collection, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM documents WHERE collection = $1 AND key = $2)",
		collection, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check document %s/%s: %w", collection, key, err)
	}
	return exists, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	doc, err := scanDocument(s.db.QueryRow(ctx,
		`SELECT collection, key, data, created_at, updated_at
		 FROM documents WHERE collection = $1 AND key = $2`,
		collection, key,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, key string, data any) error {
	raw, err := marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO documents (collection, key, data, created_at, updated_at)
		 VALUES ($1, $2, $3::jsonb, now(), now())
		 ON CONFLICT (collection, key) DO UPDATE
		 SET data = EXCLUDED.data, created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at`,
		collection, key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("put document %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, collection, key string, data any) error {
	raw, err := marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`INSERT INTO documents (collection, key, data, created_at, updated_at)
		 VALUES ($1, $2, $3::jsonb, now(), now())
		 ON CONFLICT (collection, key) DO NOTHING`,
		collection, key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("create document %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	raw, err := marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND key = $2`,
		collection, key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("update document %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.db.Exec(ctx, "DELETE FROM documents WHERE collection = $1 AND key = $2", collection, key)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, q Query) ([]Document, error) {
	query := `SELECT collection, key, data, created_at, updated_at FROM documents WHERE collection = $1`
	args := []interface{}{q.Collection}

	for _, f := range q.Where {
		args = append(args, f.Field, fmt.Sprint(f.Value))
		query += fmt.Sprintf(" AND data->>$%d = $%d", len(args)-1, len(args))
	}

	var order string
	switch q.OrderBy {
	case "", OrderByCreated:
		order = "created_at"
	case OrderByUpdated:
		order = "updated_at"
	default:
		args = append(args, q.OrderBy)
		order = fmt.Sprintf("data->>$%d", len(args))
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, key %s", order, dir, dir)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	s.listenOnce.Do(func() { go s.listen() })
	return s.feed.subscribe(ctx, q, s.List)
}

func (s *PostgresStore) listen() {
	for {
		err := s.waitForChanges()
		if s.ctx.Err() != nil {
			return
		}
		slog.Warn("docstore listener disconnected, retrying", "error", err)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *PostgresStore) waitForChanges() error {
	conn, err := s.db.Acquire(s.ctx)
	if err != nil {
		return fmt.Errorf("acquire listener conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(s.ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(s.ctx)
		if err != nil {
			return err
		}
		s.feed.publish(s.ctx, n.Payload, s.List)
	}
}

func scanDocument(row pgx.Row) (*Document, error) {
	var doc Document
	var data []byte
	if err := row.Scan(&doc.Collection, &doc.Key, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Data = data
	return &doc, nil
}
