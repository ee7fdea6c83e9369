package credentials

import (
	"context"
	"os"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/config"
)

type Credentials struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	PhotoURL    string    `json:"photo_url,omitempty"`
}

// Load loads credentials from disk
func Load() (*Credentials, error) {
	data, err := os.ReadFile(config.GetCredentialsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Credentials don't exist yet
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

// Save saves credentials to disk
func Save(creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	// Write with restricted permissions (owner read/write only)
	return os.WriteFile(config.GetCredentialsPath(), data, 0600)
}

// Delete deletes credentials from disk
func Delete() error {
	err := os.Remove(config.GetCredentialsPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsExpired checks if the access token is expired. A zero expiry never expires.
func (c *Credentials) IsExpired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(c.ExpiresAt)
}

// IsValid checks if credentials are valid
func (c *Credentials) IsValid() bool {
	return c.AccessToken != "" && c.UserID != "" && !c.IsExpired()
}

// Session exposes stored credentials as the signed-in identity.
type Session struct {
	mu        sync.RWMutex
	creds     *Credentials
	onSignOut func()
}

// NewSession wraps creds; onSignOut runs after the credentials file is removed.
func NewSession(creds *Credentials, onSignOut func()) *Session {
	return &Session{creds: creds, onSignOut: onSignOut}
}

func (s *Session) CurrentUser() *backend.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil || !s.creds.IsValid() {
		return nil
	}
	return &backend.Identity{
		UID:         s.creds.UserID,
		Email:       s.creds.Email,
		DisplayName: s.creds.DisplayName,
		PhotoURL:    s.creds.PhotoURL,
	}
}

func (s *Session) CurrentUserID() string {
	if u := s.CurrentUser(); u != nil {
		return u.UID
	}
	return ""
}

func (s *Session) SignOut(ctx context.Context) error {
	if err := Delete(); err != nil {
		return err
	}
	s.mu.Lock()
	s.creds = nil
	s.mu.Unlock()
	if s.onSignOut != nil {
		s.onSignOut()
	}
	return nil
}
