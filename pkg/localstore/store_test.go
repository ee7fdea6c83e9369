package localstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileStore(filepath.Join(dir, "local.json"))
	require.NoError(t, err)

	peb, err := NewPebbleStore(filepath.Join(dir, "pebble"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = peb.Close() })

	return map[string]Store{
		"file":   file,
		"pebble": peb,
		"memory": NewMemoryStore(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var ids []string
			ok, err := s.Get(KeyLikedPosts, &ids)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(KeyLikedPosts, []string{"p1", "p2"}))

			ok, err = s.Get(KeyLikedPosts, &ids)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []string{"p1", "p2"}, ids)

			require.NoError(t, s.Delete(KeyLikedPosts))
			ok, err = s.Get(KeyLikedPosts, &ids)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStringifiedBooleans(t *testing.T) {
	s := NewMemoryStore()

	v, err := GetBool(s, KeyPushNotifications, true)
	require.NoError(t, err)
	assert.True(t, v, "default applies when unset")

	require.NoError(t, SetBool(s, KeyPushNotifications, false))

	var raw string
	_, _ = s.Get(KeyPushNotifications, &raw)
	assert.Equal(t, "false", raw)

	v, err = GetBool(s, KeyPushNotifications, true)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestFileStorePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "local.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyTheme, "dark"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	var theme string
	ok, err := reopened.Get(KeyTheme, &theme)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", theme)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("redis", "")
	assert.Error(t, err)
}
