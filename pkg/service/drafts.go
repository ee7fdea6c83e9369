package service

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/studyhub/studyfeed/pkg/localstore"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
)

// DraftStore keeps unpublished posts in local storage only.
type DraftStore struct {
	local localstore.Store
	now   func() time.Time
	mu    sync.Mutex
}

func NewDraftStore(local localstore.Store) *DraftStore {
	return &DraftStore{local: local, now: time.Now}
}

func (s *DraftStore) load() ([]models.Draft, error) {
	var drafts []models.Draft
	if _, err := s.local.Get(localstore.KeyDrafts, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

// Save replaces the draft with the same id in place, or appends a new one.
// A draft without an id gets a fresh one. Empty drafts are not saved.
func (s *DraftStore) Save(d models.Draft) (models.Draft, error) {
	if d.IsEmpty() {
		return d, ErrNothingToSave
	}
	if d.Type == "" {
		d.Type = models.PostTypeText
	}
	if d.ID == "" {
		d.ID = "draft_" + uuid.NewString()
	}
	d.SavedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	drafts, err := s.load()
	if err != nil {
		return d, err
	}
	replaced := false
	for i := range drafts {
		if drafts[i].ID == d.ID {
			drafts[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		drafts = append(drafts, d)
	}
	if err := s.local.Set(localstore.KeyDrafts, drafts); err != nil {
		return d, err
	}

	logger.Debug("Saved draft", "id", d.ID, "type", d.Type, "replaced", replaced)
	return d, nil
}

// List returns every draft, newest first.
func (s *DraftStore) List() ([]models.Draft, error) {
	s.mu.Lock()
	drafts, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].SavedAt.After(drafts[j].SavedAt)
	})
	return drafts, nil
}

func (s *DraftStore) Get(id string) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drafts, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range drafts {
		if drafts[i].ID == id {
			d := drafts[i]
			return &d, nil
		}
	}
	return nil, ErrDraftNotFound
}

// Remove drops the draft with id. Unknown ids are ignored.
func (s *DraftStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drafts, err := s.load()
	if err != nil {
		return err
	}
	kept := drafts[:0]
	for _, d := range drafts {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(drafts) {
		return nil
	}
	return s.local.Set(localstore.KeyDrafts, kept)
}
