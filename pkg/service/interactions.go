package service

import (
	"context"
	"sync"
	"time"

	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/localstore"
	"github.com/studyhub/studyfeed/pkg/logger"
)

// IntentStatus tracks an optimistic write from local application to backend outcome.
type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentApplied   IntentStatus = "applied"
	IntentConfirmed IntentStatus = "confirmed"
	IntentFailed    IntentStatus = "failed"
)

const maxIntents = 200

// Intent is one optimistic counter change.
type Intent struct {
	ID        int64
	PostID    string
	Field     string
	Delta     int64
	Status    IntentStatus
	Err       string
	CreatedAt time.Time
}

// LikeState is the result of a like toggle.
type LikeState struct {
	Liked bool
	Delta int
}

// SaveState is the result of a save toggle.
type SaveState struct {
	Saved bool
}

// idSet is an insertion-ordered set persisted as a JSON array.
type idSet struct {
	ids []string
	has map[string]bool
}

func newIDSet(ids []string) *idSet {
	s := &idSet{has: make(map[string]bool, len(ids))}
	for _, id := range ids {
		if !s.has[id] {
			s.has[id] = true
			s.ids = append(s.ids, id)
		}
	}
	return s
}

// toggle flips membership and reports whether id is now present.
func (s *idSet) toggle(id string) bool {
	if s.has[id] {
		delete(s.has, id)
		for i, v := range s.ids {
			if v == id {
				s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
				break
			}
		}
		return false
	}
	s.has[id] = true
	s.ids = append(s.ids, id)
	return true
}

func (s *idSet) list() []string { return append([]string(nil), s.ids...) }

// InteractionStore is the local liked/saved overlay. A like persists locally
// first, then sends a counter increment that is never rolled back or retried.
// Saves never leave this device.
type InteractionStore struct {
	local localstore.Store
	gw    *backend.Gateway
	now   func() time.Time

	mu      sync.Mutex
	liked   *idSet
	saved   *idSet
	nextID  int64
	intents []*Intent
}

// NewInteractionStore loads the overlay from local storage.
func NewInteractionStore(local localstore.Store, gw *backend.Gateway) (*InteractionStore, error) {
	var liked, saved []string
	if _, err := local.Get(localstore.KeyLikedPosts, &liked); err != nil {
		return nil, err
	}
	if _, err := local.Get(localstore.KeySavedPosts, &saved); err != nil {
		return nil, err
	}
	return &InteractionStore{
		local: local,
		gw:    gw,
		now:   time.Now,
		liked: newIDSet(liked),
		saved: newIDSet(saved),
	}, nil
}

func (s *InteractionStore) IsLiked(postID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liked.has[postID]
}

func (s *InteractionStore) IsSaved(postID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved.has[postID]
}

// Liked lists liked post ids in the order they were liked.
func (s *InteractionStore) Liked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liked.list()
}

// Saved lists saved post ids in the order they were saved.
func (s *InteractionStore) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved.list()
}

// ToggleLike flips the like and sends likes ±1.
func (s *InteractionStore) ToggleLike(ctx context.Context, postID string) (LikeState, error) {
	s.mu.Lock()
	on := s.liked.toggle(postID)
	delta := 1
	if !on {
		delta = -1
	}
	intent := s.record(postID, "likes", int64(delta))
	if err := s.local.Set(localstore.KeyLikedPosts, s.liked.list()); err != nil {
		s.liked.toggle(postID)
		intent.Status = IntentFailed
		intent.Err = err.Error()
		s.mu.Unlock()
		return LikeState{Liked: !on}, err
	}
	intent.Status = IntentApplied
	s.mu.Unlock()

	s.send(ctx, intent)
	return LikeState{Liked: on, Delta: delta}, nil
}

// ToggleSave flips the save in local storage only.
func (s *InteractionStore) ToggleSave(postID string) (SaveState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	on := s.saved.toggle(postID)
	if err := s.local.Set(localstore.KeySavedPosts, s.saved.list()); err != nil {
		s.saved.toggle(postID)
		return SaveState{Saved: !on}, err
	}
	return SaveState{Saved: on}, nil
}

func (s *InteractionStore) record(postID, field string, delta int64) *Intent {
	s.nextID++
	in := &Intent{ID: s.nextID, PostID: postID, Field: field, Delta: delta, Status: IntentPending, CreatedAt: s.now()}
	s.intents = append(s.intents, in)
	if len(s.intents) > maxIntents {
		s.intents = s.intents[len(s.intents)-maxIntents:]
	}
	return in
}

func (s *InteractionStore) send(ctx context.Context, in *Intent) {
	err := s.gw.Collection(backend.CollectionPosts).Doc(in.PostID).Update(ctx, backend.Fields{
		in.Field: backend.Increment(in.Delta),
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		in.Status = IntentFailed
		in.Err = err.Error()
		logger.Error("Optimistic counter update failed", "post_id", in.PostID, "field", in.Field, "delta", in.Delta, "error", err)
		return
	}
	in.Status = IntentConfirmed
}

// Intents returns a copy of the recent intent log, oldest first.
func (s *InteractionStore) Intents() []Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Intent, len(s.intents))
	for i, in := range s.intents {
		out[i] = *in
	}
	return out
}
