package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyhub/studyfeed/pkg/backend"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/models"
)

func seedNotifications(t *testing.T, env *testEnv, uid string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, env.store.Set(context.Background(), backend.CollectionNotifications, fmt.Sprintf("%s-n%02d", uid, i), backend.Fields{
			"userId":    uid,
			"type":      "like",
			"message":   fmt.Sprintf("notification %d", i),
			"postId":    "p1",
			"read":      false,
			"createdAt": testEpoch.Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestNotificationPaging(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedNotifications(t, env, "u1", 25)
	seedNotifications(t, env, "u2", 3)
	svc := NewNotificationService(env.gw, 0)

	first, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Len(t, first, 20)
	assert.Equal(t, "u1-n24", first[0].ID)

	more, err := svc.LoadMore(ctx)
	require.NoError(t, err)
	assert.Len(t, more, 5)

	done, err := svc.LoadMore(ctx)
	require.NoError(t, err)
	assert.Nil(t, done)

	for _, n := range svc.Items() {
		assert.Equal(t, "u1", n.UserID)
	}
}

func TestNotificationReadState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedNotifications(t, env, "u1", 3)
	svc := NewNotificationService(env.gw, 0)
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	read, err := svc.ToggleRead(ctx, "u1-n00")
	require.NoError(t, err)
	assert.True(t, read)

	count, err := svc.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	changed, err := svc.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	badge, err := svc.Badge(ctx)
	require.NoError(t, err)
	assert.Empty(t, badge)
	for _, n := range svc.Items() {
		assert.True(t, n.Read)
	}
}

func TestNotificationOptimisticDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedNotifications(t, env, "u1", 2)
	svc := NewNotificationService(env.gw, 0)
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	svc.Delete(ctx, "u1-n01", nil)
	assert.Len(t, svc.Items(), 1, "removed before the write lands")
	svc.Wait()
	_, err = env.store.Get(ctx, backend.CollectionNotifications, "u1-n01")
	assert.ErrorIs(t, err, backend.ErrNotFound)

	env.store.OnWrite(func(op, coll, id string) error { return errors.New("offline") })
	var reported error
	svc.Delete(ctx, "u1-n00", func(err error) { reported = err })
	svc.Wait()
	assert.Error(t, reported)
	assert.Empty(t, svc.Items())
}

func TestNotificationRouteAndCreate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewNotificationService(env.gw, 0)

	id, err := svc.Create(ctx, models.Notification{UserID: "u1", Type: models.NotificationFollow, ActorID: "u7", Message: "Ravi followed you"})
	require.NoError(t, err)

	items, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Read)

	kind, target, err := svc.Route(ctx, items[0])
	require.NoError(t, err)
	assert.Equal(t, models.TargetProfile, kind)
	assert.Equal(t, "u7", target)
	assert.Equal(t, true, env.doc(t, backend.CollectionNotifications, id)["read"])

	n, err := svc.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, env.store.Count(backend.CollectionNotifications))
}

func TestNotificationGetChecksOwner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedNotifications(t, env, "u1", 1)
	seedNotifications(t, env, "u2", 1)
	svc := NewNotificationService(env.gw, 0)

	n, err := svc.Get(ctx, "u1-n00")
	require.NoError(t, err)
	assert.Equal(t, "notification 0", n.Message)

	_, err = svc.Get(ctx, "u2-n00")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeNotFound))
	_, err = svc.Get(ctx, "nope")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeNotFound))
}

func TestNotificationSubscribe(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewNotificationService(env.gw, 0)

	got := make(chan models.Notification, 2)
	cancel, err := svc.Subscribe(ctx, func(ct backend.ChangeType, n models.Notification) {
		if ct == backend.ChangeAdded {
			got <- n
		}
	})
	require.NoError(t, err)
	defer cancel()

	seedNotifications(t, env, "u2", 1)
	seedNotifications(t, env, "u1", 1)

	select {
	case n := <-got:
		assert.Equal(t, "u1", n.UserID)
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
	}
}
