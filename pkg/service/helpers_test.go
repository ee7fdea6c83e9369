package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/backend/memory"
	"github.com/studyhub/studyfeed/pkg/blob"
	"github.com/studyhub/studyfeed/pkg/localstore"
	"github.com/studyhub/studyfeed/pkg/models"
)

var testEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store   *memory.Store
	gw      *backend.Gateway
	local   *localstore.MemoryStore
	session *backend.StaticSession
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	store.SetClock(func() time.Time { return testEpoch })
	blobs, err := blob.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	session := &backend.StaticSession{User: &backend.Identity{UID: "u1", Email: "asha@example.com", DisplayName: "Asha Rao"}}
	gw := backend.NewGateway(store, blobs, session,
		backend.WithSubscriber(store),
		backend.WithAnswerChecker(store),
		backend.WithClock(func() time.Time { return testEpoch }))
	return &testEnv{store: store, gw: gw, local: localstore.NewMemoryStore(), session: session}
}

// seedPosts writes n text posts, the newest last, and returns their ids.
func (e *testEnv) seedPosts(t *testing.T, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("p%02d", i)
		require.NoError(t, e.store.Set(context.Background(), backend.CollectionPosts, ids[i], backend.Fields{
			"type":      "text",
			"content":   fmt.Sprintf("post number %d", i),
			"authorId":  "u2",
			"likes":     3,
			"shares":    0,
			"createdAt": testEpoch.Add(time.Duration(i) * time.Minute),
		}))
	}
	return ids
}

func (e *testEnv) doc(t *testing.T, coll, id string) map[string]interface{} {
	t.Helper()
	d, err := e.store.Get(context.Background(), coll, id)
	require.NoError(t, err)
	return d.Data
}

type recordingNotifier struct {
	mu      sync.Mutex
	success []string
	info    []string
	errs    []string
}

func (n *recordingNotifier) Success(msg string) { n.mu.Lock(); n.success = append(n.success, msg); n.mu.Unlock() }
func (n *recordingNotifier) Info(msg string)    { n.mu.Lock(); n.info = append(n.info, msg); n.mu.Unlock() }
func (n *recordingNotifier) Error(msg string)   { n.mu.Lock(); n.errs = append(n.errs, msg); n.mu.Unlock() }

func (n *recordingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.success) + len(n.info) + len(n.errs)
}

type recordingFeedView struct {
	mu       sync.Mutex
	replaced [][]*models.Post
	appended [][]*models.Post
	empty    []string
	errs     []string
}

func (v *recordingFeedView) Replace(p []*models.Post) {
	v.mu.Lock()
	v.replaced = append(v.replaced, p)
	v.mu.Unlock()
}

func (v *recordingFeedView) Append(p []*models.Post) {
	v.mu.Lock()
	v.appended = append(v.appended, p)
	v.mu.Unlock()
}

func (v *recordingFeedView) ShowEmpty(msg string) {
	v.mu.Lock()
	v.empty = append(v.empty, msg)
	v.mu.Unlock()
}

func (v *recordingFeedView) ShowError(msg string) {
	v.mu.Lock()
	v.errs = append(v.errs, msg)
	v.mu.Unlock()
}
