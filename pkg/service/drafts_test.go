package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyhub/studyfeed/pkg/localstore"
	"github.com/studyhub/studyfeed/pkg/models"
)

func textDraft(id, content string) models.Draft {
	return models.Draft{ID: id, PostContent: models.PostContent{Type: models.PostTypeText, Content: content}}
}

func TestDraftStoreReplacesInPlace(t *testing.T) {
	store := NewDraftStore(localstore.NewMemoryStore())
	tick := testEpoch
	store.now = func() time.Time { tick = tick.Add(time.Minute); return tick }

	a, err := store.Save(textDraft("", "first"))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	b, err := store.Save(textDraft("", "second"))
	require.NoError(t, err)

	a.Content = "first, edited"
	_, err = store.Save(a)
	require.NoError(t, err)

	drafts, err := store.List()
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, a.ID, drafts[0].ID, "most recently saved first")
	assert.Equal(t, "first, edited", drafts[0].Content)
	assert.Equal(t, b.ID, drafts[1].ID)
}

func TestDraftStoreRejectsEmpty(t *testing.T) {
	store := NewDraftStore(localstore.NewMemoryStore())

	_, err := store.Save(textDraft("", "  "))
	assert.ErrorIs(t, err, ErrNothingToSave)

	_, err = store.Save(models.Draft{PostContent: models.PostContent{Type: models.PostTypeMedia, HasImage: true}})
	assert.NoError(t, err)
}

func TestDraftStoreGetAndRemove(t *testing.T) {
	store := NewDraftStore(localstore.NewMemoryStore())
	d, err := store.Save(textDraft("d1", "keep"))
	require.NoError(t, err)

	got, err := store.Get("d1")
	require.NoError(t, err)
	assert.Equal(t, d.Content, got.Content)

	require.NoError(t, store.Remove("d1"))
	require.NoError(t, store.Remove("missing"))
	_, err = store.Get("d1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}
