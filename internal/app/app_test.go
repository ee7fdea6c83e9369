package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyhub/studyfeed/pkg/client"
	"github.com/studyhub/studyfeed/pkg/config"
	"github.com/studyhub/studyfeed/pkg/models"
	"github.com/studyhub/studyfeed/pkg/render"
	"github.com/studyhub/studyfeed/pkg/service"
)

func initOfflineConfig(t *testing.T) {
	t.Helper()
	require.NoError(t, config.Init(filepath.Join(t.TempDir(), "config.toml")))
	config.Set("backend.driver", DriverMemory)
	config.Set("local.driver", "memory")
	config.Set("storage.driver", "local")
}

func TestNewOfflineContainer(t *testing.T) {
	initOfflineConfig(t)

	a, err := New(context.Background(), Options{FeedView: service.NopFeedView{}})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, DriverMemory, a.Driver())
	assert.True(t, a.Offline())
	assert.Nil(t, a.Live)
	assert.NotNil(t, a.Feed)
	assert.NotNil(t, a.Creation)
	assert.NotNil(t, a.Study)
	assert.IsType(t, &render.LocalResolver{}, a.Resolver)
	assert.Empty(t, a.Session.CurrentUserID())
}

func TestNewRemoteAnswerMode(t *testing.T) {
	initOfflineConfig(t)
	config.Set("feed.answer_mode", "remote")

	a, err := New(context.Background(), Options{FeedView: service.NopFeedView{}})
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &render.RemoteResolver{}, a.Resolver)
}

func TestNewUnknownDriver(t *testing.T) {
	initOfflineConfig(t)
	config.Set("backend.driver", "carrier-pigeon")

	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestOfflinePublishAndReload(t *testing.T) {
	initOfflineConfig(t)
	ctx := context.Background()

	auth := service.NewAuthService(client.New("http://127.0.0.1:0", time.Second))
	creds, err := auth.LoginLocal("asha@example.com", "Asha Rao")
	require.NoError(t, err)

	a, err := New(ctx, Options{FeedView: service.NopFeedView{}, Notifier: quietNotifier{}})
	require.NoError(t, err)
	defer a.Close()
	require.Equal(t, creds.UserID, a.Session.CurrentUserID())

	require.NoError(t, a.Creation.SwitchPostType(models.PostTypeText))
	a.Creation.SetText("Photosynthesis happens in the chloroplast #biology")
	id, err := a.Creation.HandlePublishPost(ctx)
	require.NoError(t, err)

	page, err := a.Feed.Reload(ctx)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, id, page.Posts[0].ID)
	assert.Equal(t, "Asha Rao", page.Posts[0].AuthorName)

	require.NoError(t, a.Close())
	assert.NoError(t, a.Close(), "second close is a no-op")
}

type quietNotifier struct{}

func (quietNotifier) Success(string) {}
func (quietNotifier) Info(string)    {}
func (quietNotifier) Error(string)   {}
