package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/backend/memory"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/render"
)

func newFeed(t *testing.T, env *testEnv, view FeedView) (*FeedService, *InteractionStore) {
	t.Helper()
	inter, err := NewInteractionStore(env.local, env.gw)
	require.NoError(t, err)
	feed := NewFeedService(env.gw, inter, render.NewLocalResolver(), view, FeedOptions{ShareBaseURL: "https://studyfeed.app/"})
	return feed, inter
}

func TestFeedPagination(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedPosts(t, 25)
	view := &recordingFeedView{}
	feed, _ := newFeed(t, env, view)

	first, err := feed.Reload(ctx)
	require.NoError(t, err)
	require.Len(t, first.Posts, 10)
	assert.Equal(t, "p24", first.Posts[0].ID)

	second, err := feed.LoadMore(ctx)
	require.NoError(t, err)
	require.Len(t, second.Posts, 10)

	posts := feed.Posts()
	require.Len(t, posts, 20)
	seen := map[string]bool{}
	for i, p := range posts {
		assert.False(t, seen[p.ID], "duplicate %s", p.ID)
		seen[p.ID] = true
		if i > 0 {
			assert.True(t, posts[i-1].CreatedAt.After(p.CreatedAt), "not newest first at %d", i)
		}
	}
	assert.Len(t, view.replaced, 1)
	assert.Len(t, view.appended, 1)

	third, err := feed.LoadMore(ctx)
	require.NoError(t, err)
	assert.Len(t, third.Posts, 5)

	last, err := feed.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, last.Exhausted)
	assert.True(t, feed.Exhausted())

	none, err := feed.LoadMore(ctx)
	assert.NoError(t, err)
	assert.Nil(t, none)
	assert.Len(t, feed.Posts(), 25)
}

func TestFeedRapidScrollIssuesOneQuery(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedPosts(t, 15)
	feed, _ := newFeed(t, env, NopFeedView{})

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	env.store.OnQuery(func(q backend.Query) error {
		atomic.AddInt32(&calls, 1)
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		page, err := feed.OnScroll(ctx, 95, 100)
		assert.NoError(t, err)
		assert.NotNil(t, page)
	}()

	<-started
	assert.True(t, feed.Loading())
	for i := 0; i < 5; i++ {
		page, err := feed.OnScroll(ctx, 99, 100)
		assert.NoError(t, err)
		assert.Nil(t, page)
	}
	close(release)
	<-done

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, feed.Loading())
}

func TestFeedScrollBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	env.seedPosts(t, 3)
	feed, _ := newFeed(t, env, NopFeedView{})

	page, err := feed.OnScroll(context.Background(), 50, 100)
	assert.NoError(t, err)
	assert.Nil(t, page)
	assert.Empty(t, feed.Posts())
}

func TestFeedEmptyAndError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	view := &recordingFeedView{}
	feed, _ := newFeed(t, env, view)

	_, err := feed.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{FeedEmptyMessage}, view.empty)

	env.store.OnQuery(func(backend.Query) error { return errors.New("unavailable") })
	_, err = feed.Reload(ctx)
	require.Error(t, err)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeRead))
	assert.Equal(t, []string{FeedErrorMessage}, view.errs)
}

func TestFeedHidesAnswers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.store.Set(ctx, backend.CollectionPosts, "quiz1", backend.Fields{
		"type":               "quiz",
		"question":           "2+2?",
		"options":            []string{"3", "4", "5", "6"},
		"correctOptionIndex": 1,
		"explanation":        "Basic arithmetic.",
		"createdAt":          testEpoch,
	}))
	resolver := render.NewLocalResolver()
	inter, err := NewInteractionStore(env.local, env.gw)
	require.NoError(t, err)
	feed := NewFeedService(env.gw, inter, resolver, NopFeedView{}, FeedOptions{})

	page, err := feed.Reload(ctx)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Nil(t, page.Posts[0].CorrectOptionIndex)
	assert.Empty(t, page.Posts[0].Explanation)

	verdict, err := resolver.Resolve(ctx, "quiz1", "1")
	require.NoError(t, err)
	assert.True(t, verdict.Correct)
	assert.Equal(t, "Basic arithmetic.", verdict.Explanation)
}

func TestToggleLikeTwiceNetsZero(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedPosts(t, 1)
	feed, inter := newFeed(t, env, NopFeedView{})
	_, err := feed.Reload(ctx)
	require.NoError(t, err)

	st, err := feed.ToggleLike(ctx, "p00")
	require.NoError(t, err)
	assert.True(t, st.Liked)
	assert.Equal(t, 1, st.Delta)
	assert.EqualValues(t, 4, env.doc(t, backend.CollectionPosts, "p00")["likes"])
	assert.Equal(t, 4, feed.Posts()[0].Likes)

	st, err = feed.ToggleLike(ctx, "p00")
	require.NoError(t, err)
	assert.False(t, st.Liked)
	assert.Equal(t, -1, st.Delta)

	assert.EqualValues(t, 3, env.doc(t, backend.CollectionPosts, "p00")["likes"])
	assert.Equal(t, 3, feed.Posts()[0].Likes)
	assert.False(t, inter.IsLiked("p00"))

	intents := inter.Intents()
	require.Len(t, intents, 2)
	for _, in := range intents {
		assert.Equal(t, IntentConfirmed, in.Status)
	}
}

func TestToggleSavePersistsLocally(t *testing.T) {
	env := newTestEnv(t)
	env.seedPosts(t, 2)
	feed, inter := newFeed(t, env, NopFeedView{})

	st, err := feed.ToggleSave("p01")
	require.NoError(t, err)
	assert.True(t, st.Saved)
	_, err = feed.ToggleSave("p00")
	require.NoError(t, err)

	reopened, err := NewInteractionStore(env.local, env.gw)
	require.NoError(t, err)
	assert.Equal(t, []string{"p01", "p00"}, reopened.Saved())
	assert.True(t, reopened.IsSaved("p00"))

	assert.NotContains(t, env.doc(t, backend.CollectionPosts, "p01"), "saves")
	assert.Empty(t, inter.Intents())

	st, err = feed.ToggleSave("p01")
	require.NoError(t, err)
	assert.False(t, st.Saved)
	assert.Equal(t, []string{"p00"}, inter.Saved())
}

func TestFailedIncrementKeepsLocalToggle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedPosts(t, 1)
	_, inter := newFeed(t, env, NopFeedView{})

	env.store.OnWrite(func(op, coll, id string) error { return errors.New("offline") })
	st, err := inter.ToggleLike(ctx, "p00")
	require.NoError(t, err)
	assert.True(t, st.Liked)
	assert.True(t, inter.IsLiked("p00"))

	intents := inter.Intents()
	require.Len(t, intents, 1)
	assert.Equal(t, IntentFailed, intents[0].Status)
	assert.Equal(t, "offline", intents[0].Err)
	assert.EqualValues(t, 3, env.doc(t, backend.CollectionPosts, "p00")["likes"])

	// Nothing re-sends the failed increment once writes work again.
	env.store.OnWrite(nil)
	_, err = inter.ToggleLike(ctx, "p00")
	require.NoError(t, err)
	assert.EqualValues(t, 2, env.doc(t, backend.CollectionPosts, "p00")["likes"])
	intents = inter.Intents()
	require.Len(t, intents, 2)
	assert.Equal(t, IntentFailed, intents[0].Status)
	assert.Equal(t, IntentConfirmed, intents[1].Status)
}

// timeoutAfterCommit applies an update and then reports a deadline error,
// like a response lost after the server committed.
type timeoutAfterCommit struct {
	*memory.Store
}

func (s timeoutAfterCommit) Update(ctx context.Context, collection, id string, data backend.Fields) error {
	if err := s.Store.Update(ctx, collection, id, data); err != nil {
		return err
	}
	return context.DeadlineExceeded
}

func TestLostResponseCountsLikeOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedPosts(t, 1)
	gw := backend.NewGateway(timeoutAfterCommit{env.store}, nil, env.session)
	inter, err := NewInteractionStore(env.local, gw)
	require.NoError(t, err)

	st, err := inter.ToggleLike(ctx, "p00")
	require.NoError(t, err)
	assert.True(t, st.Liked)
	assert.Equal(t, 1, st.Delta)

	intents := inter.Intents()
	require.Len(t, intents, 1)
	assert.Equal(t, IntentFailed, intents[0].Status)
	assert.EqualValues(t, 4, env.doc(t, backend.CollectionPosts, "p00")["likes"])
}

func TestShareAndCopyLink(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedPosts(t, 1)
	feed, _ := newFeed(t, env, NopFeedView{})

	assert.Equal(t, "https://studyfeed.app/post/p00", feed.CopyLink("p00"))
	assert.Equal(t, "https://studyfeed.app/post/p00", feed.Share(ctx, "p00"))
	assert.EqualValues(t, 1, env.doc(t, backend.CollectionPosts, "p00")["shares"])
}

func TestDeletePostRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedPosts(t, 1)
	require.NoError(t, env.store.Set(ctx, backend.CollectionPosts, "mine", backend.Fields{
		"type": "text", "content": "mine", "authorId": "u1", "createdAt": testEpoch,
	}))
	feed, _ := newFeed(t, env, NopFeedView{})
	_, err := feed.Reload(ctx)
	require.NoError(t, err)

	err = feed.DeletePost(ctx, "p00")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeForbidden))

	require.NoError(t, feed.DeletePost(ctx, "mine"))
	_, err = env.store.Get(ctx, backend.CollectionPosts, "mine")
	assert.ErrorIs(t, err, backend.ErrNotFound)
	for _, p := range feed.Posts() {
		assert.NotEqual(t, "mine", p.ID)
	}
}

func TestNotInterestedDropsLocally(t *testing.T) {
	env := newTestEnv(t)
	env.seedPosts(t, 2)
	feed, _ := newFeed(t, env, NopFeedView{})
	_, err := feed.Reload(context.Background())
	require.NoError(t, err)

	assert.True(t, feed.NotInterested("p01"))
	assert.False(t, feed.NotInterested("p01"))
	assert.Len(t, feed.Posts(), 1)
	assert.Equal(t, 2, env.store.Count(backend.CollectionPosts))
}
