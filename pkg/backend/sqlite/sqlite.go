// Package sqlite stores documents as JSON rows in a local SQLite file, so the
// client can run without a remote backend (backend.driver = "sqlite").
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	json "github.com/json-iterator/go"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
	_ "modernc.org/sqlite"
)

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

var codec = json.ConfigCompatibleWithStandardLibrary

type row struct {
	ID   string `db:"id"`
	Data string `db:"data"`
}

// Store implements backend.DocumentStore, Subscriber and AnswerChecker.
type Store struct {
	db  *sqlx.DB
	hub *backend.Hub
	now func() time.Time
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	// Writes are read-modify-write inside a transaction; keep them serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Debug("Opened sqlite backend", "path", path)
	return &Store{db: db, hub: backend.NewHub(), now: time.Now}, nil
}

// SetClock overrides the clock used for server timestamps.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) Close() error { return s.db.Close() }

func decode(r row) (backend.Document, error) {
	var data map[string]interface{}
	if err := codec.UnmarshalFromString(r.Data, &data); err != nil {
		return backend.Document{}, fmt.Errorf("decode %s: %w", r.ID, err)
	}
	return backend.Document{ID: r.ID, Data: data}, nil
}

func (s *Store) Add(ctx context.Context, collection string, data backend.Fields) (string, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*backend.Document, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT id, data FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	d, err := decode(r)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data backend.Fields) error {
	out, err := backend.ApplyFields(nil, data, s.now())
	if err != nil {
		return err
	}
	body, err := codec.MarshalToString(out)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`, collection, id, body); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	change := backend.ChangeAdded
	if n > 0 {
		change = backend.ChangeModified
	}
	s.hub.Publish(collection, backend.Change{Type: change, Doc: backend.Document{ID: id, Data: out}})
	return nil
}

func (s *Store) update(ctx context.Context, tx *sqlx.Tx, collection, id string, data backend.Fields, now time.Time) (map[string]interface{}, error) {
	var r row
	err := tx.GetContext(ctx, &r, `SELECT id, data FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cur, err := decode(r)
	if err != nil {
		return nil, err
	}
	out, err := backend.ApplyFields(cur.Data, data, now)
	if err != nil {
		return nil, err
	}
	body, err := codec.MarshalToString(out)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET data = ? WHERE collection = ? AND id = ?`, body, collection, id); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, data backend.Fields) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	out, err := s.update(ctx, tx, collection, id, data, s.now())
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.hub.Publish(collection, backend.Change{Type: backend.ChangeModified, Doc: backend.Document{ID: id, Data: out}})
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	d, err := s.Get(ctx, collection, id)
	if errors.Is(err, backend.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	s.hub.Publish(collection, backend.Change{Type: backend.ChangeRemoved, Doc: *d})
	return nil
}

func (s *Store) Batch(ctx context.Context, ops []backend.BatchOp) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now()
	type pending struct {
		collection string
		change     backend.Change
	}
	var changes []pending
	for _, op := range ops {
		switch op.Kind {
		case backend.BatchUpdate:
			out, err := s.update(ctx, tx, op.Collection, op.ID, op.Data, now)
			if err != nil {
				return err
			}
			changes = append(changes, pending{op.Collection, backend.Change{Type: backend.ChangeModified, Doc: backend.Document{ID: op.ID, Data: out}}})
		case backend.BatchSet:
			out, err := backend.ApplyFields(nil, op.Data, now)
			if err != nil {
				return err
			}
			body, err := codec.MarshalToString(out)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
				ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`, op.Collection, op.ID, body); err != nil {
				return err
			}
			changes = append(changes, pending{op.Collection, backend.Change{Type: backend.ChangeModified, Doc: backend.Document{ID: op.ID, Data: out}}})
		case backend.BatchDelete:
			res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, op.Collection, op.ID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				changes = append(changes, pending{op.Collection, backend.Change{Type: backend.ChangeRemoved, Doc: backend.Document{ID: op.ID}}})
			}
		default:
			return fmt.Errorf("unknown batch op %q", op.Kind)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	for _, p := range changes {
		s.hub.Publish(p.collection, p.change)
	}
	return nil
}

// sqlValue maps a normalized filter value to what json_extract yields.
func sqlValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case time.Time:
		return backend.FormatTimestamp(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return v
}

func jsonPath(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("invalid field path %q", field)
	}
	return "$." + field, nil
}

// buildQuery translates q into SQL. Ordering ties break on id in the query's direction.
func buildQuery(q backend.Query) (string, []interface{}, error) {
	var (
		where = []string{"collection = ?"}
		args  = []interface{}{q.Collection}
	)

	for _, f := range q.Filters {
		p, err := jsonPath(f.Field)
		if err != nil {
			return "", nil, err
		}
		switch f.Op {
		case backend.OpEqual:
			where = append(where, "json_extract(data, ?) = ?")
		case backend.OpGreaterOrEqual:
			where = append(where, "json_extract(data, ?) >= ?")
		case backend.OpLessOrEqual:
			where = append(where, "json_extract(data, ?) <= ?")
		case backend.OpArrayContains:
			where = append(where, "EXISTS (SELECT 1 FROM json_each(data, ?) WHERE json_each.value = ?)")
		default:
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
		args = append(args, p, sqlValue(f.Value))
	}

	dir, cmp := "ASC", ">"
	if q.Direction == backend.Desc {
		dir, cmp = "DESC", "<"
	}

	var orderPath string
	if q.OrderBy != "" {
		p, err := jsonPath(q.OrderBy)
		if err != nil {
			return "", nil, err
		}
		orderPath = p
	}

	if q.StartAfter != "" {
		v, id, err := backend.DecodeCursor(q.StartAfter)
		if err != nil {
			return "", nil, err
		}
		switch {
		case orderPath == "":
			where = append(where, "id "+cmp+" ?")
			args = append(args, id)
		case v == nil && cmp == "<":
			where = append(where, "(json_extract(data, ?) IS NULL AND id < ?)")
			args = append(args, orderPath, id)
		case v == nil:
			where = append(where, "(json_extract(data, ?) IS NOT NULL OR id > ?)")
			args = append(args, orderPath, id)
		default:
			where = append(where, fmt.Sprintf("(json_extract(data, ?) %s ? OR (json_extract(data, ?) = ? AND id %s ?))", cmp, cmp))
			args = append(args, orderPath, sqlValue(v), orderPath, sqlValue(v), id)
		}
	}

	query := "SELECT id, data FROM documents WHERE " + strings.Join(where, " AND ")
	if orderPath != "" {
		query += fmt.Sprintf(" ORDER BY json_extract(data, ?) %s, id %s", dir, dir)
		args = append(args, orderPath)
	} else {
		query += " ORDER BY id " + dir
	}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return query, args, nil
}

func (s *Store) Query(ctx context.Context, q backend.Query) (*backend.Snapshot, error) {
	query, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	snap := &backend.Snapshot{Docs: make([]backend.Document, 0, len(rows))}
	for _, r := range rows {
		d, err := decode(r)
		if err != nil {
			return nil, err
		}
		snap.Docs = append(snap.Docs, d)
	}
	if n := len(snap.Docs); n > 0 {
		snap.Last = backend.CursorFor(snap.Docs[n-1], q.OrderBy)
	}
	return snap, nil
}

func (s *Store) Subscribe(ctx context.Context, q backend.Query, fn func(backend.Change)) (func(), error) {
	return s.hub.Subscribe(ctx, q, fn)
}

// CheckAnswer judges an answer against the stored post.
func (s *Store) CheckAnswer(ctx context.Context, postID, answer string) (*models.Verdict, error) {
	d, err := s.Get(ctx, backend.CollectionPosts, postID)
	if err != nil {
		return nil, err
	}
	var p models.Post
	if err := d.DataTo(&p); err != nil {
		return nil, err
	}
	return models.Judge(&p, answer)
}
