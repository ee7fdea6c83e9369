package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/json-iterator/go"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer exposes a memory store over the same routes the hosted backend serves.
func fakeServer(t *testing.T, store *memory.Store) *httptest.Server {
	writeJSON := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		b, _ := json.Marshal(v)
		_, _ = w.Write(b)
	}
	fail := func(w http.ResponseWriter, err error) {
		if errors.Is(err, backend.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Code: "not_found", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: err.Error()})
	}
	decode := func(r *http.Request, out interface{}) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := r.URL.Path

		switch {
		case strings.HasPrefix(p, apiPrefix+"/posts/") && strings.HasSuffix(p, "/answer"):
			id := strings.TrimSuffix(strings.TrimPrefix(p, apiPrefix+"/posts/"), "/answer")
			var req answerRequest
			if err := decode(r, &req); err != nil {
				fail(w, err)
				return
			}
			v, err := store.CheckAnswer(ctx, id, req.Answer)
			if err != nil {
				fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, v)
			return
		case p == apiPrefix+"/collections:batch":
			var req batchRequest
			if err := decode(r, &req); err != nil {
				fail(w, err)
				return
			}
			if err := store.Batch(ctx, req.Ops); err != nil {
				fail(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		rest := strings.TrimPrefix(p, apiPrefix+"/collections/")
		if strings.HasSuffix(rest, ":query") {
			var q backend.Query
			if err := decode(r, &q); err != nil {
				fail(w, err)
				return
			}
			snap, err := store.Query(ctx, q)
			if err != nil {
				fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, snap)
			return
		}

		segs := strings.Split(rest, "/")
		if len(segs)%2 == 1 {
			var data backend.Fields
			if err := decode(r, &data); err != nil {
				fail(w, err)
				return
			}
			id, err := store.Add(ctx, rest, data)
			if err != nil {
				fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, addResponse{ID: id})
			return
		}

		coll, id := strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1]
		switch r.Method {
		case http.MethodGet:
			d, err := store.Get(ctx, coll, id)
			if err != nil {
				fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, d)
		case http.MethodPut, http.MethodPatch:
			var data backend.Fields
			if err := decode(r, &data); err != nil {
				fail(w, err)
				return
			}
			var err error
			if r.Method == http.MethodPut {
				err = store.Set(ctx, coll, id, data)
			} else {
				err = store.Update(ctx, coll, id, data)
			}
			if err != nil {
				fail(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			if _, err := store.Get(ctx, coll, id); err != nil {
				fail(w, err)
				return
			}
			_ = store.Delete(ctx, coll, id)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
}

func newTestStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	mem := memory.New()
	srv := fakeServer(t, mem)
	t.Cleanup(srv.Close)
	return New(resty.New().SetBaseURL(srv.URL), nil), mem
}

func TestDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	id, err := s.Add(ctx, "posts", backend.Fields{"content": "Hello world", "likes": 0, "createdAt": backend.ServerTimestamp})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.Update(ctx, "posts", id, backend.Fields{"likes": backend.Increment(1)}))

	d, err := s.Get(ctx, "posts", id)
	require.NoError(t, err)
	assert.Equal(t, id, d.ID)
	assert.Equal(t, "Hello world", d.Data["content"])
	assert.Equal(t, 1.0, d.Data["likes"])
	assert.NotEmpty(t, d.Data["createdAt"])

	require.NoError(t, s.Delete(ctx, "posts", id))
	assert.Equal(t, 0, mem.Count("posts"))

	_, err = s.Get(ctx, "posts", id)
	assert.True(t, backend.IsNotFound(err))
	assert.NoError(t, s.Delete(ctx, "posts", id), "deleting a missing doc is not an error")
}

func TestSubCollectionPaths(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	_, err := s.Add(ctx, "messages/c1/messages", backend.Fields{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Count("messages/c1/messages"))

	require.NoError(t, s.Set(ctx, "messages", "c1", backend.Fields{"lastMessage": "hi"}))
	d, err := mem.Get(ctx, "messages", "c1")
	require.NoError(t, err)
	assert.Equal(t, "hi", d.Data["lastMessage"])
}

func TestQueryAndBatch(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, mem.Set(ctx, "notifications", id, backend.Fields{
			"userId":    "u1",
			"read":      false,
			"createdAt": base.Add(time.Duration(i) * time.Hour),
		}))
	}

	q := backend.Query{
		Collection: "notifications",
		Filters:    []backend.Filter{{Field: "userId", Op: backend.OpEqual, Value: "u1"}},
		OrderBy:    "createdAt",
		Direction:  backend.Desc,
		Limit:      2,
	}
	snap, err := s.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, snap.Docs, 2)
	assert.Equal(t, "n3", snap.Docs[0].ID)

	q.StartAfter = snap.Last
	snap, err = s.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, "n1", snap.Docs[0].ID)

	require.NoError(t, s.Batch(ctx, []backend.BatchOp{
		{Kind: backend.BatchUpdate, Collection: "notifications", ID: "n1", Data: backend.Fields{"read": true}},
		{Kind: backend.BatchDelete, Collection: "notifications", ID: "n2"},
	}))
	d, err := mem.Get(ctx, "notifications", "n1")
	require.NoError(t, err)
	assert.Equal(t, true, d.Data["read"])
	assert.Equal(t, 2, mem.Count("notifications"))
}

func TestCheckAnswerAndErrors(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)
	require.NoError(t, mem.Set(ctx, "posts", "q1", backend.Fields{
		"type":               "quiz",
		"options":            []string{"a", "b", "c", "d"},
		"correctOptionIndex": 3,
		"explanation":        "d is right",
	}))

	v, err := s.CheckAnswer(ctx, "q1", "3")
	require.NoError(t, err)
	assert.True(t, v.Correct)
	assert.Equal(t, "d is right", v.Explanation)

	_, err = s.CheckAnswer(ctx, "missing", "1")
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestSubscribeWithoutRealtime(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Subscribe(context.Background(), backend.Query{Collection: "posts"}, func(backend.Change) {})
	assert.ErrorIs(t, err, backend.ErrLiveUnsupported)
}

func TestParseErrorFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	s := New(resty.New().SetBaseURL(srv.URL), nil)
	_, err := s.Get(context.Background(), "posts", "p1")
	require.Error(t, err)
	assert.True(t, backend.IsServerError(err))
	assert.Contains(t, err.Error(), "upstream down")
}
