// Package memory is an in-process document store with the same query
// semantics as the remote backend. The CLI uses it for --offline runs.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/models"
)

// Store keeps documents in nested maps keyed by collection path and id.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	hub         *backend.Hub
	now         func() time.Time

	hookMu  sync.RWMutex
	onQuery func(backend.Query) error
	onWrite func(op, collection, id string) error
}

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]interface{}),
		hub:         backend.NewHub(),
		now:         time.Now,
	}
}

// SetClock overrides the clock used for server timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// OnQuery installs a hook run before every query. A non-nil error fails the query.
func (s *Store) OnQuery(fn func(backend.Query) error) {
	s.hookMu.Lock()
	s.onQuery = fn
	s.hookMu.Unlock()
}

// OnWrite installs a hook run before every write. A non-nil error fails the write.
func (s *Store) OnWrite(fn func(op, collection, id string) error) {
	s.hookMu.Lock()
	s.onWrite = fn
	s.hookMu.Unlock()
}

func (s *Store) beforeWrite(op, collection, id string) error {
	s.hookMu.RLock()
	fn := s.onWrite
	s.hookMu.RUnlock()
	if fn != nil {
		return fn(op, collection, id)
	}
	return nil
}

func (s *Store) coll(name string) map[string]map[string]interface{} {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]map[string]interface{})
		s.collections[name] = c
	}
	return c
}

func copyData(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) Add(ctx context.Context, collection string, data backend.Fields) (string, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*backend.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.collections[collection][id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &backend.Document{ID: id, Data: copyData(d)}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data backend.Fields) error {
	if err := s.beforeWrite("set", collection, id); err != nil {
		return err
	}
	s.mu.Lock()
	out, err := backend.ApplyFields(nil, data, s.now())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	_, existed := s.coll(collection)[id]
	s.coll(collection)[id] = out
	s.mu.Unlock()

	change := backend.ChangeAdded
	if existed {
		change = backend.ChangeModified
	}
	s.hub.Publish(collection, backend.Change{Type: change, Doc: backend.Document{ID: id, Data: copyData(out)}})
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, data backend.Fields) error {
	if err := s.beforeWrite("update", collection, id); err != nil {
		return err
	}
	s.mu.Lock()
	cur, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return backend.ErrNotFound
	}
	out, err := backend.ApplyFields(cur, data, s.now())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.collections[collection][id] = out
	s.mu.Unlock()

	s.hub.Publish(collection, backend.Change{Type: backend.ChangeModified, Doc: backend.Document{ID: id, Data: copyData(out)}})
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.beforeWrite("delete", collection, id); err != nil {
		return err
	}
	s.mu.Lock()
	cur, ok := s.collections[collection][id]
	delete(s.collections[collection], id)
	s.mu.Unlock()

	if ok {
		s.hub.Publish(collection, backend.Change{Type: backend.ChangeRemoved, Doc: backend.Document{ID: id, Data: cur}})
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q backend.Query) (*backend.Snapshot, error) {
	s.hookMu.RLock()
	hook := s.onQuery
	s.hookMu.RUnlock()
	if hook != nil {
		if err := hook(q); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	docs := make([]backend.Document, 0, len(s.collections[q.Collection]))
	for id, d := range s.collections[q.Collection] {
		docs = append(docs, backend.Document{ID: id, Data: copyData(d)})
	}
	s.mu.RUnlock()

	return backend.Evaluate(docs, q)
}

// Batch validates every update target before applying anything.
func (s *Store) Batch(ctx context.Context, ops []backend.BatchOp) error {
	for _, op := range ops {
		if err := s.beforeWrite("batch:"+string(op.Kind), op.Collection, op.ID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	now := s.now()
	staged := make([]map[string]interface{}, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case backend.BatchUpdate:
			cur, ok := s.collections[op.Collection][op.ID]
			if !ok {
				s.mu.Unlock()
				return backend.ErrNotFound
			}
			out, err := backend.ApplyFields(cur, op.Data, now)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			staged[i] = out
		case backend.BatchSet:
			out, err := backend.ApplyFields(nil, op.Data, now)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			staged[i] = out
		}
	}

	type pending struct {
		collection string
		change     backend.Change
	}
	changes := make([]pending, 0, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case backend.BatchDelete:
			if cur, ok := s.collections[op.Collection][op.ID]; ok {
				delete(s.collections[op.Collection], op.ID)
				changes = append(changes, pending{op.Collection, backend.Change{Type: backend.ChangeRemoved, Doc: backend.Document{ID: op.ID, Data: cur}}})
			}
		default:
			s.coll(op.Collection)[op.ID] = staged[i]
			changes = append(changes, pending{op.Collection, backend.Change{Type: backend.ChangeModified, Doc: backend.Document{ID: op.ID, Data: copyData(staged[i])}}})
		}
	}
	s.mu.Unlock()

	for _, p := range changes {
		s.hub.Publish(p.collection, p.change)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q backend.Query, fn func(backend.Change)) (func(), error) {
	return s.hub.Subscribe(ctx, q, fn)
}

// Count returns the number of documents in a collection.
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
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
