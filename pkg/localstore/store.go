// Package localstore persists small client-side state (drafts, overlays,
// recent searches, settings, study progress) on the local machine.
package localstore

import (
	"fmt"
	"strconv"
)

// Keys used by the client. Values are JSON.
const (
	KeyDrafts            = "postDrafts"
	KeyLikedPosts        = "likedPosts"
	KeySavedPosts        = "savedPosts"
	KeyRecentSearches    = "recentSearches"
	KeyTheme             = "theme"
	KeyPushNotifications = "pushNotifications"
	KeyBiometricLogin    = "biometricLogin"
	KeyStudyProgress     = "studyProgress"
	KeyNoteDownloads     = "noteDownloads"
	KeyStudyActivities   = "studyActivities"
	KeyLastStudyDate     = "lastStudyDate"
	KeyStudyGoal         = "studyGoal"
)

// Store is a string-keyed JSON value store. Writes are last-write-wins.
type Store interface {
	// Get decodes the value at key into out and reports whether it existed.
	Get(key string, out interface{}) (bool, error)
	Set(key string, value interface{}) error
	Delete(key string) error
	Close() error
}

// Open returns the store selected by driver ("file" or "pebble").
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "file":
		return NewFileStore(path)
	case "pebble":
		return NewPebbleStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown local store driver %q", driver)
	}
}

// GetBool reads a flag stored as a stringified boolean, returning def when unset.
func GetBool(s Store, key string, def bool) (bool, error) {
	var raw string
	ok, err := s.Get(key, &raw)
	if err != nil || !ok {
		return def, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, nil
	}
	return v, nil
}

// SetBool stores a flag as "true" or "false".
func SetBool(s Store, key string, v bool) error {
	return s.Set(key, strconv.FormatBool(v))
}
