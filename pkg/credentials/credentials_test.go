package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/studyhub/studyfeed/pkg/config"
)

func initConfig(t *testing.T) {
	t.Helper()
	if err := config.Init(filepath.Join(t.TempDir(), "config.toml")); err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}
}

// TestCredentialsIsExpired validates token expiration check
func TestCredentialsIsExpired(t *testing.T) {
	testCases := []struct {
		expiresAt time.Time
		expect    bool
		name      string
	}{
		{time.Now().Add(-1 * time.Hour), true, "past expiration"},
		{time.Now().Add(1 * time.Hour), false, "future expiration"},
		{time.Time{}, false, "no expiration"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creds := &Credentials{AccessToken: "test_token", ExpiresAt: tc.expiresAt}
			if result := creds.IsExpired(); result != tc.expect {
				t.Errorf("Expected IsExpired=%v, got %v", tc.expect, result)
			}
		})
	}
}

// TestCredentialsIsValid validates credential validity check
func TestCredentialsIsValid(t *testing.T) {
	testCases := []struct {
		accessToken string
		userID      string
		expiresAt   time.Time
		expect      bool
		name        string
	}{
		{"valid_token", "u1", time.Now().Add(1 * time.Hour), true, "valid credentials"},
		{"", "u1", time.Now().Add(1 * time.Hour), false, "empty access token"},
		{"valid_token", "", time.Now().Add(1 * time.Hour), false, "missing user"},
		{"valid_token", "u1", time.Now().Add(-1 * time.Hour), false, "expired token"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creds := &Credentials{AccessToken: tc.accessToken, UserID: tc.userID, ExpiresAt: tc.expiresAt}
			if result := creds.IsValid(); result != tc.expect {
				t.Errorf("Expected IsValid=%v, got %v", tc.expect, result)
			}
		})
	}
}

func TestSaveLoadDelete(t *testing.T) {
	initConfig(t)

	creds, err := Load()
	if err != nil || creds != nil {
		t.Fatalf("Load before save should return nil, nil; got %v, %v", creds, err)
	}

	in := &Credentials{AccessToken: "tok", UserID: "u1", Email: "a@b.c"}
	if err := Save(in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(config.GetCredentialsPath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("credentials should be 0600, got %v", info.Mode().Perm())
	}

	out, err := Load()
	if err != nil || out == nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.UserID != "u1" || out.Email != "a@b.c" {
		t.Errorf("unexpected credentials %+v", out)
	}

	if err := Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := Delete(); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
}

func TestSessionSignOut(t *testing.T) {
	initConfig(t)

	creds := &Credentials{AccessToken: "tok", UserID: "u1", Email: "a@b.c"}
	if err := Save(creds); err != nil {
		t.Fatal(err)
	}

	signedOut := false
	s := NewSession(creds, func() { signedOut = true })

	if s.CurrentUserID() != "u1" {
		t.Errorf("CurrentUserID = %q", s.CurrentUserID())
	}
	if u := s.CurrentUser(); u == nil || u.Email != "a@b.c" {
		t.Errorf("CurrentUser = %+v", u)
	}

	if err := s.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if !signedOut {
		t.Error("sign-out hook should run")
	}
	if s.CurrentUser() != nil {
		t.Error("no user after sign-out")
	}
	if _, err := os.Stat(config.GetCredentialsPath()); !os.IsNotExist(err) {
		t.Error("credentials file should be removed")
	}
}
